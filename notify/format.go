package notify

import (
	"fmt"
	"strings"

	"pricehound/models"
)

const brand = "PriceHound"

// markdownV2Special lists every character Telegram requires escaping in MarkdownV2 text.
const markdownV2Special = "_*[]()~`>#+-=|{}.!\\"

// EscapeMarkdownV2 escapes text for use in a MarkdownV2 message body.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeLinkTarget escapes the URL part of an inline link, where only ')' and '\' are special.
func escapeLinkTarget(url string) string {
	return strings.NewReplacer(`\`, `\\`, `)`, `\)`).Replace(url)
}

func displayName(a *models.PriceAlert) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.SubscriberID
}

func formatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

// ChatMessage renders the MarkdownV2 price-drop message.
func ChatMessage(a *models.PriceAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*, спешим сообщить, что интересующий вас товар *подешевел\\!* 🎉\n",
		EscapeMarkdownV2(displayName(a)))
	if a.Title != "" {
		fmt.Fprintf(&b, "_%s_\n", EscapeMarkdownV2(a.Title))
	}
	fmt.Fprintf(&b, "Успейте отследить все изменения с помощью *%s*\n\n", EscapeMarkdownV2(brand))
	fmt.Fprintf(&b, "💸 *%s* ➡️ *%s*\n\n", EscapeMarkdownV2(formatPrice(a.OldPrice)), EscapeMarkdownV2(formatPrice(a.NewPrice)))
	fmt.Fprintf(&b, "[🔗 Ссылка на товар](%s)", escapeLinkTarget(a.URL))
	return b.String()
}

// EmailSubject renders the subject line of the price-drop email.
func EmailSubject(a *models.PriceAlert) string {
	return "Price Drop Alert for " + displayName(a)
}

// EmailBody renders the plain-text price-drop email.
func EmailBody(a *models.PriceAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", displayName(a))
	b.WriteString("Great news! The item you're tracking has dropped in price:\n")
	if a.Title != "" {
		fmt.Fprintf(&b, "%s\n", a.Title)
	}
	fmt.Fprintf(&b, "Old price: %s\n", formatPrice(a.OldPrice))
	fmt.Fprintf(&b, "New price: %s\n\n", formatPrice(a.NewPrice))
	fmt.Fprintf(&b, "Check it out here: %s\n\n", a.URL)
	fmt.Fprintf(&b, "Best,\n%s Team\n", brand)
	return b.String()
}
