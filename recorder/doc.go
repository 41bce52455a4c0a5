// Package recorder contains the recording session engine.
//
// A session records the Pokémon ids that appear in a chat message that
// another bot keeps editing. It provides:
//   - Engine.Start: fetches the target message, registers a session keyed by
//     the message id (at most one per message), opens the live status surface
//     and starts a per-session inactivity supervisor.
//   - Engine.HandleEdit: re-extracts ids from the full edited content and,
//     when new ids appear, refreshes the activity clock and schedules a
//     best-effort status refresh.
//   - Engine.Stop: manual termination. The supervisor terminates on
//     inactivity. Both paths race through Session.Stop, which lets exactly one
//     of them unregister the session and publish the sorted, paginated report.
//
// Rendering is delegated to a Presenter/Surface pair so the engine has no
// knowledge of the chat platform.
package recorder
