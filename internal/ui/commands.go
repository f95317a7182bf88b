package ui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Majr25/SpriteEdit/internal/save"
	"github.com/Majr25/SpriteEdit/internal/ui/command"
)

type preparedMsg struct {
	plan *save.Plan
}

type savedMsg struct {
	result save.Result
}

type saveFailedMsg struct {
	stage string
	err   error
}

// requestSave starts the save flow: duplicates block it, a pending
// conflict reopens the merge editor, otherwise the summary is asked for.
func (m *Model) requestSave() tea.Cmd {
	if m.saver == nil {
		m.report(errNoSaver, "")
		return nil
	}
	if m.saver.Pending() && m.conflict != nil {
		m.setMode(ModeMerge)
		return m.merge.Focus()
	}
	if m.session.HasDuplicates() {
		m.showDuplicates(m.session.DuplicateNames())
		return nil
	}
	if err := m.blocked(); err != nil {
		m.report(err, "")
		return nil
	}
	return m.startInput(purposeSummary, 0, m.summary, "what changed")
}

func (m *Model) blocked() error {
	if m.remote == nil {
		return nil
	}
	return m.remote.Blocked()
}

func (m *Model) showDuplicates(names []string) {
	m.duplicates = names
	m.setMode(ModeDuplicates)
}

// startSave drafts the plan from the session, then composes the sheet and
// fetches the diff off the UI goroutine.
func (m *Model) startSave(summary string) tea.Cmd {
	m.summary = summary
	m.errMsg = ""
	plan, err := m.saver.Draft()
	// Drafting allocates positions and section numbers.
	m.rowsDirty = true
	if err != nil {
		return m.handleSaveFailedMsg(saveFailedMsg{stage: "prepare", err: err})
	}
	m.setMode(ModeBusy)
	saver, timeout := m.saver, m.timeout
	return m.bus.Execute(command.Request{
		ID:    "save:prepare",
		Label: "Preparing save",
		Run: func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := saver.Prepare(ctx, plan); err != nil {
				return saveFailedMsg{stage: "prepare", err: err}
			}
			return preparedMsg{plan: plan}
		},
	})
}

func (m *Model) handlePreparedMsg(msg tea.Msg) tea.Cmd {
	prepared, ok := msg.(preparedMsg)
	if !ok {
		return nil
	}
	m.rowsDirty = true
	if prepared.plan == nil || !prepared.plan.Changed() {
		m.plan = nil
		m.setMode(ModeBrowse)
		m.report(nil, "Nothing to save")
		return nil
	}
	m.plan = prepared.plan
	m.review.SetContent(m.reviewContent(prepared.plan))
	m.review.GotoTop()
	m.setMode(ModeReview)
	return nil
}

// confirmSave writes the reviewed plan.
func (m *Model) confirmSave() tea.Cmd {
	plan, summary := m.plan, m.summary
	if plan == nil {
		m.setMode(ModeBrowse)
		return nil
	}
	m.setMode(ModeBusy)
	saver, timeout := m.saver, m.timeout
	return m.bus.Execute(command.Request{
		ID:    "save:write",
		Label: "Saving",
		Run: func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			res, err := saver.Save(ctx, plan, summary)
			if err != nil {
				return saveFailedMsg{stage: "save", err: err}
			}
			return savedMsg{result: res}
		},
	})
}

// resolveConflict saves the merged text over the newer revision.
func (m *Model) resolveConflict() tea.Cmd {
	merged := m.merge.Value()
	m.merge.Blur()
	m.setMode(ModeBusy)
	saver, timeout := m.saver, m.timeout
	return m.bus.Execute(command.Request{
		ID:    "save:resolve",
		Label: "Saving merged text",
		Run: func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			res, err := saver.Resolve(ctx, merged)
			if err != nil {
				return saveFailedMsg{stage: "resolve", err: err}
			}
			return savedMsg{result: res}
		},
	})
}

func (m *Model) abandonConflict() {
	m.saver.Abandon()
	m.conflict = nil
	m.merge.Blur()
	m.merge.Reset()
	m.setMode(ModeBrowse)
	m.report(nil, "Save abandoned; your edits are still here")
}

func (m *Model) handleSavedMsg(msg tea.Msg) tea.Cmd {
	saved, ok := msg.(savedMsg)
	if !ok {
		return nil
	}
	res := saved.result
	m.plan = nil
	m.conflict = nil
	m.merge.Reset()
	m.rowsDirty = true
	m.setMode(ModeBrowse)
	if res.NoChange {
		m.report(nil, "Nothing changed on the wiki")
		return nil
	}
	session, err := m.saver.Commit(res)
	if session != nil && session != m.session {
		m.setSession(session)
	}
	m.summary = ""
	if m.remote != nil && !res.Timestamp.IsZero() {
		m.remote.SetBase(res.Timestamp)
		if !m.remote.Stale() {
			m.warnMsg = ""
		}
	}
	if m.onSaved != nil {
		m.onSaved(res)
	}
	if err != nil {
		m.report(err, "")
		return nil
	}
	if res.Merged {
		m.report(nil, "Saved merged text; reloaded the page from it")
		return nil
	}
	m.report(nil, fmt.Sprintf("Saved %d name(s)", len(res.Positions)))
	return nil
}

func (m *Model) handleSaveFailedMsg(msg tea.Msg) tea.Cmd {
	failed, ok := msg.(saveFailedMsg)
	if !ok {
		return nil
	}
	m.rowsDirty = true
	var conflict *save.ConflictError
	if errors.As(failed.err, &conflict) {
		m.conflict = conflict
		m.merge.SetValue(conflict.Mine)
		m.setMode(ModeMerge)
		m.report(nil, "Someone else edited the page; merge and press ctrl+s")
		return m.merge.Focus()
	}
	var dup *save.DuplicateError
	if errors.As(failed.err, &dup) {
		m.plan = nil
		m.showDuplicates(dup.Names)
		return nil
	}
	if failed.stage == "resolve" && m.conflict != nil {
		m.setMode(ModeMerge)
		m.report(fmt.Errorf("%s: %w", failed.stage, failed.err), "")
		return m.merge.Focus()
	}
	m.plan = nil
	m.setMode(ModeBrowse)
	m.report(fmt.Errorf("%s: %w", failed.stage, failed.err), "")
	return nil
}
