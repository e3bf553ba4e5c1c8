package config

// stripComments removes // and /* */ comments from JSONC content,
// leaving comment-like sequences inside strings untouched.
func stripComments(data []byte) []byte {
	out := make([]byte, 0, len(data))

	inString := false
	i := 0
	for i < len(data) {
		c := data[i]

		if c == '"' && (i == 0 || data[i-1] != '\\') {
			inString = !inString
			out = append(out, c)
			i++
			continue
		}

		if !inString && c == '/' && i+1 < len(data) {
			switch data[i+1] {
			case '/':
				for i < len(data) && data[i] != '\n' {
					i++
				}
				continue
			case '*':
				i += 2
				for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
					i++
				}
				i += 2
				continue
			}
		}

		out = append(out, c)
		i++
	}

	return out
}
