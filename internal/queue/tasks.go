package queue

const (
	TypePromptReevaluate = "prompt:reevaluate"
)

type PromptReevaluatePayload struct {
	VersionID string `json:"version_id"`
}
