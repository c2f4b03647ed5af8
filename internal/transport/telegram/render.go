package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/meetme/matchmaker/internal/db"
	svcErr "github.com/meetme/matchmaker/internal/errors"
	"github.com/meetme/matchmaker/internal/notify"
	"github.com/meetme/matchmaker/internal/pairing"
	"github.com/meetme/matchmaker/internal/registration"
	"github.com/meetme/matchmaker/internal/repository"
)

const helpText = `/register - create or update your profile
/find - browse candidates
/status - where you stand
/filters <male|female|any> <min-max> - change who you are shown
/confirm, /decline - answer a match
/unpair <reason> - ask the admins to end your pair
/cancelunpair - withdraw that request
/delete - delete your account`

const adminHelpText = `/pending, /requests, /pairs, /stats
/approve <id>, /reject <id>
/ban <id> [reason], /unban <id>
/forceunpair <id>
/approveunpair <request> [comment], /denyunpair <request> [comment]
/broadcast <text>, /dm <id> <text>`

var prompts = map[registration.Step]string{
	registration.StepFirstName:       "What is your first name?",
	registration.StepLastName:        "And your last name?",
	registration.StepAge:             "How old are you?",
	registration.StepGender:          "Your gender: male or female?",
	registration.StepCourse:          "Which course do you study? (or skip)",
	registration.StepInterests:       "What are you into? (or skip)",
	registration.StepMedia:           "Send a photo or a short video of yourself, or type skip.",
	registration.StepAbout:           "Tell us a bit about yourself (or skip).",
	registration.StepPreferredGender: "Who would you like to meet: male, female or any?",
	registration.StepPreferredAge:    "Preferred age range, e.g. 18-25.",
}

func prompt(d *registration.Draft) string {
	if d.Step == registration.StepConfirm {
		in := d.Input
		return fmt.Sprintf("%s %s, %d, %s\nLooking for: %s, %d-%d\n\nSend /done to submit or /cancel to start over.",
			in.FirstName, in.LastName, in.Age, in.Gender, in.PreferredGender, in.PreferredAgeMin, in.PreferredAgeMax)
	}
	return prompts[d.Step]
}

func card(p *db.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s, %d\n", p.FirstName, p.LastName, p.Age)
	if p.Course != "" {
		fmt.Fprintf(&b, "Course: %s\n", p.Course)
	}
	if p.Interests != "" {
		fmt.Fprintf(&b, "Interests: %s\n", p.Interests)
	}
	if p.AboutMe != "" {
		b.WriteString(p.AboutMe)
	}
	return strings.TrimSpace(b.String())
}

func statusText(v *pairing.StatusView) string {
	p := v.Profile
	if p.Banned {
		return "Your account is banned."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s\nState: %s\n", p.Approval, p.Pairing)
	if v.Match != nil && v.Counterpart != nil {
		fmt.Fprintf(&b, "Open match with %s. Use /confirm or /decline.\n", v.Counterpart.FirstName)
	}
	if v.Partner != nil {
		fmt.Fprintf(&b, "Paired with %s (@%s).\n", v.Partner.FirstName, v.Partner.Username)
	}
	if v.Request != nil {
		fmt.Fprintf(&b, "Unpair request #%d is waiting for an admin.\n", v.Request.ID)
	}
	return strings.TrimSpace(b.String())
}

func statsText(s *repository.Stats) string {
	return fmt.Sprintf(
		"Users: %d (banned %d)\nApproval: %v\nPairing: %v\nConfirmed matches: %d\nPair history: %d\nPending unpairs: %d\nLikes: %d, skips: %d",
		s.TotalUsers, s.Banned, s.Approval, s.Pairing, s.ConfirmedMatches,
		s.PairHistory, s.PendingUnpairs, s.TotalLikes, s.TotalSkips,
	)
}

// eventText turns a notification into the message its recipient reads.
func eventText(ev notify.Event) string {
	switch ev.Kind {
	case notify.KindMatchFound:
		return "You have a mutual like! Use /status to see who, then /confirm or /decline."
	case notify.KindMatchConfirmedPartial:
		return "Your match confirmed. It is your turn: /confirm or /decline."
	case notify.KindPaired:
		return "You are now a pair. Use /status to see your partner's contact."
	case notify.KindMatchRejected:
		return "Your match was declined. Keep browsing with /find."
	case notify.KindMatchExpired:
		return "Your match expired without both confirmations. Keep browsing with /find."
	case notify.KindUnpairRequested:
		return fmt.Sprintf("User %d asks to unpair: %s", ev.Counterpart, ev.Text)
	case notify.KindUnpairApproved:
		return withNote("Your pair has been dissolved.", ev.Text)
	case notify.KindUnpairAutoApproved:
		return "Your pair has been dissolved after the waiting period."
	case notify.KindUnpairDenied:
		return withNote("The unpair request was denied.", ev.Text)
	case notify.KindForceUnpaired:
		return "An admin dissolved your pair. You are back in search."
	case notify.KindProfileSubmitted:
		return fmt.Sprintf("Profile %d is waiting for review: /approve %d or /reject %d", ev.Counterpart, ev.Counterpart, ev.Counterpart)
	case notify.KindProfileApproved:
		return "Your profile is approved. Start browsing with /find."
	case notify.KindProfileRejected:
		return "Your profile was rejected. You can edit it with /register."
	case notify.KindBanned:
		return withNote("Your account has been banned.", ev.Text)
	case notify.KindUnbanned:
		return "Your ban was lifted. Your profile is back in review."
	case notify.KindPartnerLeft:
		return "Your partner left. You are back in search."
	case notify.KindBroadcast, notify.KindDirect:
		return ev.Text
	}
	return string(ev.Kind)
}

func withNote(s, note string) string {
	if note == "" {
		return s
	}
	return s + "\nNote: " + note
}

// errorText maps a domain error to a user-facing reply. Unknown errors get a
// generic line; the cause goes to the log.
func errorText(err error) string {
	var v *svcErr.ValidationError
	switch {
	case errors.As(err, &v):
		return fmt.Sprintf("Invalid %s: %s.", strings.ReplaceAll(v.Field, "_", " "), v.Reason)
	case errors.Is(err, svcErr.ErrBanned):
		return "Your account is banned."
	case errors.Is(err, svcErr.ErrAccessDenied):
		return "This command is for admins only."
	case errors.Is(err, svcErr.ErrAlreadyPending):
		return "You already have a pending request."
	case errors.Is(err, svcErr.ErrNotFound):
		return "Nothing to act on. Check /status."
	case errors.Is(err, svcErr.ErrInvalidState):
		return "That is not possible right now. Check /status."
	}
	return "Something went wrong, please try again later."
}
