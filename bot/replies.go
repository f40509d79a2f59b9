// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bot

// Fixed reply texts. Failure texts of a chat turn come from
// conversation.Replies instead.
const (
	replyStarted       = "Yay, let's chat!"
	replyAlreadyActive = "I'm already chatting in this room. You weren't paying attention to me at all."
	replyStopped       = "Bye for now. Try not to miss me too much."
	replyNotStarted    = "I wasn't chatting here in the first place."
	replyNotActive     = "I'm not chatting in this room. Use `%s start` first."

	replyForgotAll  = "Huh? What just happened?"
	replyForgotSome = "Forgot the last %d messages."

	replyPrompt        = "```\nCurrent prompt: %s\n```"
	replyPromptUpdated = "```\nPrompt updated: %s\n```"
	replyPromptTooLong = "Way too much! Are you trying to wash my brain out completely? Refused."

	replyModel         = "Your model: %s (%s)"
	replyModelSet      = "Model set to %s (%s)."
	replyNotPrivileged = "The premium model needs a privileged role in this room."

	replyNoCredits   = "You are out of credits. Ask the administrator for more."
	replyGranted     = "%s now has %s in credits."
	replyUnknownUser = "%s has no record yet. Add `new` to create one."
	replyBadUser     = "%q is not a Matrix user ID."

	replyNotAdmin       = "Only the administrator can do that."
	replyUnknownCommand = "Unknown command %q. Try `%s help`."
	replyUsage          = "Usage: `%s`"
	replyFailed         = "Something went wrong. Please try again."

	// replyNotSaved is appended when the change applies now but could
	// not be persisted.
	replyNotSaved      = "\n\n(The change could not be saved and will be lost on restart.)"
	replyNotSavedAlone = "The change could not be saved. Please try again."
)

// quotaReaction marks a message that was not answered for lack of
// credits.
const quotaReaction = "💸"
