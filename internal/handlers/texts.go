package handlers

const (
	textWelcome = "👋 Hi! I track your medication schedule.\n\n" +
		"/meds — today's medications and the next dose\n" +
		"/status — today's adherence\n" +
		"/sync — refresh plans from your care team"

	textUnknownCommand = "I only know /meds, /status and /sync."

	textNoPlans = "No medication plans yet. Your care team adds them; try /sync later."

	textSynced = "Synced %d plan(s). Reminders are up to date."

	textSyncFailed = "Couldn't reach the care service. Your local records are safe and will sync later."

	textSavedLocally = "☁️ Saved locally; it will sync once the care service is reachable."

	textPlanGone = "That plan is no longer on your list. Try /sync."

	textPlanInactive = "That plan is paused or stopped, so doses aren't being tracked for it."
)
