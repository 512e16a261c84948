package adapter

// Translator renders localized bot texts.
type Translator interface {
	T(key string, args ...interface{}) string
}
