package llm

import (
	"fmt"
	"strings"
)

const baseSystemPrompt = `You are an email assistant drafting replies on behalf of the mailbox owner.
Guidelines:
- Be professional, clear, and concise
- Match the tone of the original email
- Address every question or point raised
- Do not invent facts, prices, dates or commitments`

const classifyPrompt = `Decide whether this email needs a personal reply from the mailbox owner.

From: %s
Subject: %s
Body:
%s

Answer in exactly this format:
REQUIRES_RESPONSE: yes or no
REASON: one short sentence

Newsletters, marketing, automated notifications, receipts and no-reply senders do not need a reply.
Direct questions, requests and action items addressed to the owner do.`

// maxPromptBody bounds how much of a message body is sent to the model
const maxPromptBody = 4000

func buildClassifyPrompt(req ClassifyRequest) string {
	return fmt.Sprintf(classifyPrompt, formatSender(req.SenderName, req.SenderEmail), req.Subject, truncate(req.Body, 1000))
}

func buildSystemPrompt(req GenerateRequest) string {
	var b strings.Builder
	if strings.TrimSpace(req.SystemPrompt) != "" {
		b.WriteString(strings.TrimSpace(req.SystemPrompt))
	} else {
		b.WriteString(baseSystemPrompt)
	}
	for _, extra := range req.Instructions {
		extra = strings.TrimSpace(extra)
		if extra == "" {
			continue
		}
		b.WriteString("\n\nAdditional instructions: ")
		b.WriteString(extra)
	}
	return b.String()
}

func buildUserPrompt(req GenerateRequest) string {
	var b strings.Builder
	b.WriteString("Draft a reply to this email.\n\n")
	fmt.Fprintf(&b, "From: %s\nSubject: %s\n---\n%s\n---\n",
		formatSender(req.SenderName, req.SenderEmail), req.Subject, truncate(req.Body, maxPromptBody))

	if len(req.ThreadHistory) > 0 {
		b.WriteString("\nEarlier messages in the thread, oldest first:\n")
		for _, h := range req.ThreadHistory {
			b.WriteString("---\n")
			b.WriteString(truncate(h, 1000))
			b.WriteString("\n")
		}
	}

	b.WriteString("\nAnswer in exactly this format:\nRESPONSE:\n[reply body]\nREASONING:\n[why this reply]\nCONFIDENCE: [0.0 to 1.0]")
	if req.Signature != "" {
		b.WriteString("\n\nEnd the reply with this signature:\n")
		b.WriteString(req.Signature)
	}
	return b.String()
}

func formatSender(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", name, email)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
