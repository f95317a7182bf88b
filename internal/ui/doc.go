// Package ui contains the Bubble Tea program for editing a sprite sheet's
// names and layout. The Model type focuses on message orchestration, while
// dedicated helpers own navigation, input, rendering and the save flow.
//
// Message flow:
//   - Bubble Tea invokes Model.Update with incoming messages. Each tea.Msg is
//     routed through a typed handler registry so it is handled by a focused
//     function (key presses, mouse gestures, drag frames, backend events,
//     dropped files, save results).
//   - Key presses are dispatched on the current Mode. Browse mode edits the
//     tree directly through the editor.Session; the other modes own a widget
//     (text input, jump filter, review viewport, merge textarea).
//   - Every session change marks the rows dirty. finishUpdate rebuilds them
//     once per message, keeping the cursor on the same element.
//
// State ownership:
//   - Visible rows, the cursor and the jump filter live in
//     internal/ui/state.Level. Rows carry everything the view needs, so View
//     never walks the document.
//   - Drags run through internal/drag.Controller. Mouse drags are applied on
//     a frame tick; keyboard moves apply each step at once.
//   - Saves run through the internal/ui/command bus. Only composing the
//     sheet and the wiki calls run there. The steps that read or rebase the
//     session (Saver.Draft before dispatch, Saver.Commit on the saved
//     message) run on the UI goroutine, and the model sits in ModeBusy while
//     a bus step is in flight.
//
// Backend interactions:
//   - A backend.Watcher streams revision and user events; the dispatcher
//     records them in the shared state.RemoteStore and the model turns the
//     result into a warning line.
//   - A dropzone.Zone streams batches of image files; they are inserted into
//     the section under the cursor once the model is back in browse mode.
package ui
