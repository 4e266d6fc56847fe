// Package prompts holds the system and user prompt templates the assistant
// sends to the chat model, plus helpers for handling model output.
package prompts

import (
	"fmt"
	"strings"

	"github.com/onboardia/onboardia/internal/store"
)

// WelcomeEmailSystem frames the model as an HR copywriter.
const WelcomeEmailSystem = "You are HR Ops helping write friendly welcome emails."

// ChatSystem frames the assistant for free-form conversation.
const ChatSystem = "You are an HR Tech assistant. Keep responses friendly and chill."

const welcomeEmailTemplate = `Write a warm, welcoming **HTML email** for a new %s joining the %s team at VachhaniAI Labs.

Requirements:
- Output **only raw HTML**, no triple backticks, no extra markdown, no "html" tag outside the HTML structure.
- Use inline CSS for styling so it looks elegant across all email clients.
- Incorporate subtle brand colors:
  - Primary accent: #FF3621
  - Secondary: #1B3139
  - Background: #F9F7F4
- Use clean typography (e.g., sans-serif fonts) with proper spacing.
- Include:
  - A friendly greeting with %s
  - A short paragraph welcoming them to the team
  - A section about what their first week will look like
  - A note about onboarding tasks in Asana which they receive soon via email
  - Contact info for their manager: %s
  - Sign-off from HR
- Make sure the HTML looks balanced, mobile-friendly, and visually appealing.
- Avoid overly fancy graphics, keep it modern and readable.

Personalization fields:
- Name: %s
- Role: %s
- Team: %s
- Start Date: %s
- Manager Email: %s
- Location: %s

Return **only the HTML body**, no code fences, no extra commentary.`

// fallbackManagerEmail is used when a hire has no manager on record.
const fallbackManagerEmail = "hr@company.com"

// WelcomeEmail renders the user prompt for generating a hire's welcome email.
func WelcomeEmail(emp store.Employee) string {
	manager := emp.ManagerEmail
	if manager == "" {
		manager = fallbackManagerEmail
	}
	start := emp.DateJoined.Format("2006-01-02")
	return fmt.Sprintf(welcomeEmailTemplate,
		emp.Role, emp.Department,
		emp.Name, manager,
		emp.Name, emp.Role, emp.Department, start, manager, emp.Location,
	)
}

// StripCodeFence removes a wrapping markdown code fence the model sometimes
// adds despite instructions.
func StripCodeFence(s string) string {
	out := strings.TrimSpace(s)
	if !strings.HasPrefix(out, "```") {
		return out
	}
	out = strings.TrimPrefix(out, "```")
	// Drop an optional language tag like "html".
	if idx := strings.IndexByte(out, '\n'); idx >= 0 {
		first := strings.TrimSpace(out[:idx])
		if first != "" && !strings.ContainsAny(first, "<> ") {
			out = out[idx+1:]
		}
	}
	out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	return strings.TrimSpace(out)
}

// WelcomeSubject builds the subject line for a hire's welcome email.
func WelcomeSubject(name string) string {
	return fmt.Sprintf("Welcome to the team, %s!", name)
}
