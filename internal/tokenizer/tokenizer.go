// Package tokenizer turns text prompts into the integer id sequences the
// backends' text encoders consume. Both model families ship a T5-style
// SentencePiece model alongside their ONNX graphs.
package tokenizer

// Tokenizer encodes a prompt into SentencePiece token IDs.
type Tokenizer interface {
	// Encode tokenizes text and returns SentencePiece token IDs.
	Encode(text string) ([]int64, error)
}
