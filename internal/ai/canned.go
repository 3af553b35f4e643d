package ai

import (
	"context"
	"strings"

	"github.com/tbourn/go-edu-chat-backend/internal/domain"
)

type cannedReply struct {
	keywords []string
	text     string
}

// Checked in order; the first rule with a matching keyword wins.
var cannedReplies = []cannedReply{
	{
		keywords: []string{"math", "mathematics"},
		text:     "Mathematics is the study of numbers, quantities, and shapes. It's a fundamental discipline that helps us understand patterns and relationships in the world. What specific area of mathematics would you like to explore?",
	},
	{
		keywords: []string{"science"},
		text:     "Science is a systematic approach to understanding the natural world through observation and experimentation. It encompasses fields like physics, chemistry, biology, and more. Which scientific concept are you interested in learning about?",
	},
	{
		keywords: []string{"history"},
		text:     "History is the study of past events, particularly human affairs. It helps us understand how our present world came to be. Is there a specific historical period or event you'd like to discuss?",
	},
	{
		keywords: []string{"literature"},
		text:     "Literature encompasses written works valued for their form, ideas, and emotional impact. It includes poetry, novels, plays, and more. Which literary work or author are you interested in exploring?",
	},
	{
		keywords: []string{"computer", "programming"},
		text:     "Computer science is the study of computers and computational systems, including programming, algorithms, data structures, and more. What aspect of computer science would you like to learn about?",
	},
}

// DefaultReply is returned when no keyword matches.
const DefaultReply = "That's an interesting question! I'm here to help with your educational queries. Could you provide more details about what you'd like to learn?"

// Canned answers from a fixed table of subject keywords, matched
// case-insensitively anywhere in the message. History is ignored.
type Canned struct{}

// Generate implements Generator.
func (Canned) Generate(_ context.Context, message string, _ []domain.Turn) (string, error) {
	low := strings.ToLower(message)
	for _, r := range cannedReplies {
		for _, kw := range r.keywords {
			if strings.Contains(low, kw) {
				return r.text, nil
			}
		}
	}
	return DefaultReply, nil
}
