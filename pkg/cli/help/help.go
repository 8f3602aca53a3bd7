// Package help provides embedded documentation for htmlshot CLI help topics.
package help

import (
	"embed"
	"fmt"
	"strings"
)

//go:embed topics/*.txt
var Topics embed.FS

// AvailableTopics lists all available help topics.
var AvailableTopics = []string{"syntax", "variables", "config", "api"}

// TopicDescriptions provides short descriptions for each topic.
var TopicDescriptions = map[string]string{
	"syntax":    "Template placeholder, conditional and iteration syntax",
	"variables": "Variable files, value formatting and sanitization",
	"config":    "Configuration file and environment variables",
	"api":       "HTTP endpoints served by 'htmlshot serve'",
}

// GetTopic retrieves the content of a help topic by name.
func GetTopic(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	found := false
	for _, t := range AvailableTopics {
		if t == name {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("unknown help topic: %s\n\nAvailable topics:\n%s", name, ListTopics())
	}

	content, err := Topics.ReadFile("topics/" + name + ".txt")
	if err != nil {
		return "", fmt.Errorf("failed to read topic %s: %w", name, err)
	}
	return string(content), nil
}

// ListTopics returns a formatted list of available topics.
func ListTopics() string {
	var sb strings.Builder
	for _, topic := range AvailableTopics {
		fmt.Fprintf(&sb, "  %-12s %s\n", topic, TopicDescriptions[topic])
	}
	return sb.String()
}
