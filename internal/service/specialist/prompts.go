package specialist

import (
	"fmt"
	"strings"

	"ai-voice-agent-orchestrator/internal/models"
)

const qualifierPrompt = `You are Anna, a sales development representative. Your job is to qualify the lead on this call.

Collect, naturally and one question at a time:
- Budget: does the company have budget for a solution?
- Authority: is the caller the decision-maker?
- Need: how concrete is their need for automation?
- Timeline: when do they want to implement?

Never ask everything at once. Briefly confirm each answer. Keep replies to two sentences, warm and professional.`

const objectionPrompt = `You are Anna, a sales development representative. You handle sales objections on a live call.

Use the LAER framework: listen, acknowledge, explore, respond.
Never be defensive. Validate the concern. Stay honest.

Common objections:
- Price: talk about return on investment and flexible plans
- Time: propose a concrete alternative
- Not the decision-maker: offer to include the decision-maker or send a summary
- Existing tool: position us as a complement
- No need: respect it and leave the door open

Keep replies to two sentences.`

const schedulerPrompt = `You are Anna, a sales development representative. You book a product demo with a qualified lead.

Process:
1. Soft ask whether they are open to a short call
2. Ask for a morning or afternoon preference
3. Propose a concrete slot (Monday to Friday, 9:00 to 17:00, 30 minutes)
4. Collect name, email and company
5. Confirm and build anticipation

Ask for the date as YYYY-MM-DD and the time as HH:MM when you need them. Keep replies to two sentences.`

func qualifierTone(label models.SentimentLabel) string {
	switch label {
	case models.SentimentFrustrated:
		return "The caller seems frustrated. Be especially patient and empathetic."
	case models.SentimentExcited:
		return "The caller is excited. Use the positive energy."
	case models.SentimentNegative:
		return "The caller sounds skeptical. Acknowledge that before asking anything new."
	}
	return ""
}

func objectionTone(label models.SentimentLabel) string {
	if label == models.SentimentFrustrated {
		return "IMPORTANT: the caller is frustrated. Be extremely patient, acknowledge their feelings and slow down."
	}
	return ""
}

func closingTechnique(label models.SentimentLabel) string {
	switch label {
	case models.SentimentExcited:
		return "The caller is excited. Use an assumptive close and build anticipation."
	case models.SentimentNeutral:
		return "The caller is neutral. Give extra reassurance and name concrete benefits."
	case models.SentimentNegative, models.SentimentFrustrated:
		return "The caller is hesitant. Offer a low-commitment slot and make cancelling easy."
	}
	return ""
}

func withHint(prompt, hint string) string {
	if hint == "" {
		return prompt
	}
	return prompt + "\n\n" + hint
}

func describeQualification(q models.Qualification) string {
	return fmt.Sprintf("budget=%s, authority=%s, need=%s, timeline=%s",
		orUnknown(string(q.Budget)), orUnknown(string(q.Authority)),
		orUnknown(string(q.Need)), orUnknown(string(q.Timeline)))
}

func describeAppointment(a models.Appointment) string {
	var parts []string
	add := func(k, v string) {
		if v != "" && v != models.Pending {
			parts = append(parts, k+"="+v)
		}
	}
	add("name", a.Name)
	add("email", a.Email)
	add("company", a.Company)
	add("date", a.Date)
	add("time", a.Time)
	if len(parts) == 0 {
		return "nothing yet"
	}
	return strings.Join(parts, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
