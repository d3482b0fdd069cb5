package controller

const (
	titleLength = 30
	titleSuffix = "..."
)

// DeriveTitle returns the first 30 characters of text followed by "...".
// The suffix is added even when text is shorter.
func DeriveTitle(text string) string {
	n := 0
	for i := range text {
		if n == titleLength {
			return text[:i] + titleSuffix
		}
		n++
	}
	return text + titleSuffix
}
