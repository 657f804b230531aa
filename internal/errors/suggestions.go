package errors

import (
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// ServerStartError generates suggestions for server startup failures
func ServerStartError(err error, port int) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{}

	errStr := err.Error()

	if strings.Contains(errStr, "address already in use") || strings.Contains(errStr, "bind") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Port already in use",
			Description: fmt.Sprintf("Port %d is already being used by another process", port),
			Command:     fmt.Sprintf("lsof -i :%d", port),
		})

		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use a different port",
			Description: "Start the server on a different port",
			Command:     fmt.Sprintf("rwb serve --port %d", port+1),
		})
	}

	if strings.Contains(errStr, "permission denied") && port < 1024 {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use unprivileged port",
			Description: "Ports below 1024 require root privileges",
			Command:     "rwb serve --port 3000",
		})
	}

	return suggestions
}

// ManifestSuggestions generates suggestions for manifest errors
func ManifestSuggestions(err error, manifestPath string) []ErrorSuggestion {
	var e *Error
	if !As(err, &e) {
		return nil
	}

	switch e.Code {
	case ErrCodeManifestNotFound:
		return []ErrorSuggestion{{
			Title:       "Run rwb from the project root",
			Description: "rwb reads package.json from the current working directory",
			Command:     "ls " + manifestPath,
		}}
	case ErrCodeManifestSectionMissing, ErrCodeManifestMainMissing:
		return []ErrorSuggestion{{
			Title:       "Add an rwb section to package.json",
			Description: "rwb.main must point at the module exporting your root component",
			Example:     `"rwb": { "main": "./src/App.js", "dom_node": "#app" }`,
		}}
	case ErrCodeInvalidSelector, ErrCodeInvalidElement:
		return []ErrorSuggestion{{
			Title:       "Fix rwb.dom_node",
			Description: "The mount point must look like `#id`, `div#id` or `span#id`",
			Example:     `"dom_node": "span#root"`,
		}}
	}

	return nil
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	return FormatSuggestions(e.Title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions
func NewEnhancedError(title string, originalError error, suggestions []ErrorSuggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}
