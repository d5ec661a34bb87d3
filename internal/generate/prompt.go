package generate

import (
	"fmt"
	"strings"

	"github.com/sparklabs/spark/internal/domain"
)

// Topics is the fixed classification set the model chooses from.
var Topics = []string{"PoliticsEconomics", "Stocks", "Math", "Education", "IndieDev", "SaaS"}

const systemPrompt = `You are an assistant drafting reply suggestions for posts on X (Twitter).
Write replies that add a genuine perspective: specific, conversational, under 140 characters each.
Never be negative, aggressive, or generic. Match the language of the target post.`

// suggestionStyles labels the three-suggestion profile: one empathetic
// agreement, one question that invites a response, one light-witted take.
var suggestionStyles = []string{
	"an empathetic reply that agrees and adds a supporting point",
	"a reply that asks a sharp follow-up question",
	"a witty, light-hearted reply",
}

// buildReplyPrompt assembles the generation prompt for one record.
func buildReplyPrompt(rec *domain.ReplyRecord, count int) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nTarget post:\n")
	b.WriteString(rec.BodyText)
	if rec.QuotedText != "" {
		b.WriteString("\n\nQuoted post:\n")
		b.WriteString(rec.QuotedText)
	}

	fmt.Fprintf(&b, "\n\nClassify the post's topic as one of: %s.\n", strings.Join(Topics, ", "))
	fmt.Fprintf(&b, "Then write %d reply suggestions", count)
	if count == len(suggestionStyles) {
		b.WriteString(":\n")
		for i, style := range suggestionStyles {
			fmt.Fprintf(&b, "%d. %s\n", i+1, style)
		}
	} else {
		b.WriteString(", each taking a distinct angle.\n")
	}

	b.WriteString("\nOutput strictly as JSON: {\"topic\": \"...\", \"suggestions\": [\"...\"]}. No other text.")
	return b.String()
}
