// Package delivery chunks and sends summaries to a Telegram chat.
package delivery

// TelegramMaxLength is Telegram's per-message character limit.
const TelegramMaxLength = 4096

// Split cuts text into chunks of at most limit runes. Splits prefer, in
// order, a blank line, a newline, then a space; a chunk is cut mid-word only
// when no such boundary exists. The separator stays with the preceding chunk
// so concatenating the result reproduces the input exactly.
func Split(text string, limit int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := lastBoundary(runes[:limit])
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// lastBoundary finds the index to cut a window at, keeping the break
// character in the preceding chunk.
func lastBoundary(window []rune) int {
	// Blank line: cut after the second newline.
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == '\n' && window[i-1] == '\n' {
			return i + 1
		}
	}
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == '\n' {
			return i + 1
		}
	}
	for i := len(window) - 1; i > 0; i-- {
		if window[i] == ' ' {
			return i + 1
		}
	}
	return len(window)
}
