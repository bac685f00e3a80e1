package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
)

const basePrompt = `You are a professional sales assistant for Pharmesol, a company that provides Voice AI and Messaging AI solutions for pharmacies.

Your role:
- Be professional, friendly, and helpful
- Listen carefully and respond naturally
- Use function calls to take actions when appropriate
- Keep responses concise and conversational (2-3 sentences max)
- Focus on understanding their needs and how Pharmesol's AI solutions can help

Pharmesol Services:
- Voice AI and Messaging AI for pharmacies
- AI-enabled pharmacy assistant that automates conversations
- Patient inquiry automation (prescription refills, appointment scheduling, etc.)
- Administrative task automation
- 24/7 automated patient communication
- LLM technology specifically designed for pharmaceutical contexts
- Reduces staff workload and improves patient service
`

const newLeadPrompt = `
This is a new lead. Your goal is to:
1. Collect basic information about their pharmacy (name, contact person, location)
2. Understand their prescription volume
3. Get their email for follow-up
4. Explain how Pharmesol can help based on their volume
5. Offer to schedule a callback or send more information

Use the collect_pharmacy_info function as you learn details about their pharmacy.
Don't ask all questions at once - make it conversational and natural.
`

const (
	defaultGreeting     = "Hello! Thank you for calling Pharmesol. How can I help you today?"
	fallbackResume      = "Welcome back! I recall our previous conversation. How can I help you today?"
	emptyResumeFallback = "Welcome back! How can I continue to assist you today?"
)

// SystemPrompt renders the turn instructions for the model. A known pharmacy
// adds its directory facts; otherwise new leads get collection goals.
func SystemPrompt(p *pharmacy.Pharmacy, isNewLead bool) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	switch {
	case p != nil:
		tier := p.Tier()
		b.WriteString("\n\nCurrent Pharmacy Information:\n")
		fmt.Fprintf(&b, "- Name: %s\n", p.Name)
		fmt.Fprintf(&b, "- Contact: %s\n", orDefault(p.ContactPerson, "Not specified"))
		address := "Not specified"
		if p.Address != "" {
			address = fmt.Sprintf("%s, %s, %s", p.Address, p.City, p.State)
		}
		fmt.Fprintf(&b, "- Address: %s\n", address)
		fmt.Fprintf(&b, "- Monthly Rx Volume: ~%s prescriptions\n", pharmacy.FormatVolume(p.RxVolume))
		fmt.Fprintf(&b, "- Volume Tier: %s\n", tier)
		fmt.Fprintf(&b, "- Email: %s\n", orDefault(p.EmailAddress(), "Not provided"))
		b.WriteString("\nTalking Points:\n")
		b.WriteString(pharmacy.VolumeMessage(tier))
		b.WriteString("\n\nReference their pharmacy details naturally in conversation to show familiarity.\n")
	case isNewLead:
		b.WriteString("\n")
		b.WriteString(newLeadPrompt)
	}
	return b.String()
}

// GreetingFor builds the opening message of a new conversation.
func GreetingFor(p *pharmacy.Pharmacy) string {
	if p == nil {
		return "Hello! Thank you for calling Pharmesol.\n\n" +
			pharmacy.Introduction(nil) +
			"\n\nMay I get your pharmacy's name to better understand how we can assist you?"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello! Thank you for calling Pharmesol. I see you're calling from %s.", p.Name)
	if p.ContactPerson != "" {
		fmt.Fprintf(&b, " Am I speaking with %s?", p.ContactPerson)
	}
	b.WriteString("\n\n")
	b.WriteString(pharmacy.Introduction(p))
	return b.String()
}

func continuationPrompt(p *pharmacy.Pharmacy, state State) string {
	speaking := "New lead conversation"
	if p != nil {
		speaking = "Speaking with: " + p.Name
		if p.ContactPerson != "" {
			speaking += " (" + p.ContactPerson + ")"
		}
	}
	return `You are a professional sales assistant for Pharmesol resuming a previous conversation.

Your task: Generate a brief, friendly message that:
1. Acknowledges you're continuing from a previous conversation
2. Provides a 1-sentence summary of what was discussed
3. Smoothly transitions to continue helping them

Guidelines:
- Be warm and professional
- Keep it concise (2-3 sentences total)
- Reference specific details from the conversation if available
- Match the conversation stage: ` + string(state) + `
- Don't repeat information unnecessarily

` + speaking
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
