package inference

// Class labels produced by the binary classifier.
const (
	LabelNormal    = "NORMAL"
	LabelPneumonia = "PNEUMONIA"
)

// Probabilities carries the full class distribution. The two values sum
// to 1 up to floating-point rounding.
type Probabilities struct {
	Normal    float64 `json:"NORMAL"`
	Pneumonia float64 `json:"PNEUMONIA"`
}

// Result is the classification outcome returned to the client. Confidence
// is the probability of whichever class was predicted, so it is always at
// least 0.5.
type Result struct {
	Prediction    string        `json:"prediction"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
	ModelUsed     string        `json:"model_used"`
	Timestamp     string        `json:"timestamp"`
}
