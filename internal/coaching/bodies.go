package coaching

import "fmt"

// Signature is appended to every outbound coaching email. The dispatcher
// appends it unconditionally, so generated text that already ends with a
// sign-off gets it twice. Known bug, kept until product decides otherwise.
const Signature = "Wes"

func firstNameOr(firstName string) string {
	if firstName == "" {
		return "there"
	}
	return firstName
}

// OnboardingBody is the invite email sent when a new member is added.
func OnboardingBody(firstName string) string {
	return fmt.Sprintf(`Hey %s,

Welcome to coaching. Here's how this works:

A couple times a week, I'll check in with a few quick questions about what you're working on. You reply (should take about 5 minutes), and I'll send back focused feedback - usually within a day or so.

That's it. Short exchanges, consistent momentum.

Before we start, I need some context from you. Reply to this email with:

1. Where you're at right now:
   - Still figuring out the idea (Ideation)
   - Testing if people want this (Early Validation)
   - Have some traction, refining the model (Late Validation)
   - Growing and scaling (Growth)
2. Your biggest challenge or question right now
3. If you have one, your current business idea (2-3 sentences is fine; if you don't yet have an idea, this is where we'll get started)

Once I hear back, we'll get started.

Talk soon,`, firstNameOr(firstName))
}

// OnboardingChallengeBody acknowledges the member's stage/idea reply and
// asks for their biggest challenge.
func OnboardingChallengeBody(firstName string) string {
	return fmt.Sprintf("Thanks %s! That helps a lot.\n\nOne more thing before we get started: What's the single biggest challenge or question you're facing right now with your business?\n\nOnce I know that, I'll start sending you focused check-ins.", firstNameOr(firstName))
}

// WelcomeBody completes onboarding and gives the member their first nudge.
func WelcomeBody(firstName string) string {
	return fmt.Sprintf("You're all set, %s. I'll start checking in regularly.\n\nIn the meantime, here's your first nudge: based on what you told me, what's the ONE thing you could do this week to make progress on that challenge?\n\nKeep it small and specific.", firstNameOr(firstName))
}

// PauseBody confirms a pause request. The inline sign-off plus the
// dispatcher's unconditional one means pause confirmations go out signed
// twice; see Signature.
func PauseBody() string {
	return "No problem - I'll pause check-ins for now. Just reply 'resume' whenever you're ready to pick back up.\n\nWes"
}

// ResumeBody confirms a resume request. Same double sign-off as PauseBody.
func ResumeBody() string {
	return "Welcome back! I'll resume the regular check-ins. You'll hear from me soon.\n\nWes"
}

// WrapUpBody closes out a thread that hit the reply cap.
func WrapUpBody(firstName string) string {
	return fmt.Sprintf("Great conversation so far, %s! I'll pick this up in your next check-in. Keep the momentum going in the meantime.", firstNameOr(firstName))
}

// StandardCheckinBody is the fixed check-in template used when generating a
// personalized question fails.
func StandardCheckinBody(firstName string) string {
	return fmt.Sprintf(`Hey %s,

Just wanted to quickly check-in and see how things are going. Please reply with:

1. Accomplished - What did you get done since we last talked?
2. Current Focus - What are you working on now?
3. Next Step - What's the single most important thing you need to do next?
4. Approach - How are you going about it?

There's no need to spend a ton of time on this. A sentence or two for each is plenty.`, firstNameOr(firstName))
}

// ReEngagementBody nudges a member who has gone quiet.
func ReEngagementBody(firstName string) string {
	return fmt.Sprintf(`Hey %s,

Haven't heard from you in a bit. Everything okay?

When you're ready, just reply with a quick update on what you're working on.`, firstNameOr(firstName))
}
