//go:build !cgo

package activity

// NewNativeClassifier reports false: the native classifier needs cgo.
func NewNativeClassifier() (Classifier, bool) {
	return nil, false
}
