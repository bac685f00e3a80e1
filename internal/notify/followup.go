package notify

import (
	"fmt"
	"strings"

	"github.com/wolfman30/pharmesol-assistant/internal/pharmacy"
)

const (
	defaultFromName = "Pharmesol"
	demoURL         = "https://pharmesol.example.com/demo"
	salesLine       = "1-800-PHARMA-1"
)

var solutionLines = []string{
	"Automated Dispensing Systems - Reduce errors and increase efficiency",
	"Inventory Management - Real-time tracking and automated reordering",
	"Prescription Workflow Automation - Streamline your daily operations",
	"Compliance & Regulatory Support - Stay current with all requirements",
	"Analytics & Reporting - Make data-driven decisions",
}

// tierParagraph completes the volume sentence of the follow-up email.
func tierParagraph(tier pharmacy.Tier) string {
	switch tier {
	case pharmacy.TierHigh:
		return "our enterprise-level solutions are designed to handle high-volume operations with maximum efficiency."
	case pharmacy.TierMedium:
		return "our mid-tier solutions offer the perfect balance of automation and flexibility for growing pharmacies."
	case pharmacy.TierLow:
		return "our scalable solutions will grow with your pharmacy as your volume increases."
	default:
		return "we have solutions tailored to pharmacies of all sizes."
	}
}

// BuildFollowupEmail renders the follow-up email for a pharmacy snapshot.
// A nil snapshot produces the generic variant addressed to the pharmacy manager.
func BuildFollowupEmail(to string, p *pharmacy.Pharmacy, includePricing bool) EmailMessage {
	name := "Your Pharmacy"
	contact := "Pharmacy Manager"
	if p != nil {
		if strings.TrimSpace(p.Name) != "" {
			name = p.Name
		}
		if strings.TrimSpace(p.ContactPerson) != "" {
			contact = p.ContactPerson
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", contact)
	b.WriteString("Thank you for your interest in Pharmesol's pharmacy management solutions.\n\n")

	if p != nil && p.RxVolume > 0 {
		fmt.Fprintf(&b, "Based on your monthly prescription volume of approximately %s prescriptions, %s\n\n",
			pharmacy.FormatVolume(p.RxVolume), tierParagraph(p.Tier()))
	}

	b.WriteString("Our Comprehensive Solutions Include:\n")
	for _, line := range solutionLines {
		fmt.Fprintf(&b, "• %s\n", line)
	}
	b.WriteString("\n")

	if includePricing {
		b.WriteString("Pricing Information:\n")
		b.WriteString("Our solutions are tailored to your pharmacy's specific needs. ")
		b.WriteString("We offer flexible pricing models based on volume and features. ")
		b.WriteString("Contact us for a personalized quote.\n\n")
	}

	b.WriteString("Next Steps:\n")
	fmt.Fprintf(&b, "Schedule a demo: %s\n", demoURL)
	fmt.Fprintf(&b, "Call us: %s\n", salesLine)
	b.WriteString("Reply to this email with any questions\n\n")
	b.WriteString("Best regards,\n")
	b.WriteString("The Pharmesol Team\n")

	msg := EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("Pharmesol Solutions for %s", name),
		Body:    b.String(),
	}
	if p != nil {
		msg.ToName = p.ContactPerson
	}
	return msg
}
