package domain

import (
	"errors"
	"testing"
	"time"
)

func validCase() *Case {
	now := time.Now()
	return &Case{
		CaseID: "case_v1",
		Query:  "verify identity of ACME sarl",
		Status: CaseStatusRunning,
		Turn:   2,
		Transcript: Transcript{
			{Turn: 0, AgentID: AgentPlanner, Kind: TurnKindMessage, Text: "plan; handoff: retriever", CreatedAt: now},
			{Turn: 1, AgentID: AgentRetrieve, Kind: TurnKindMessage, Text: "retrieved 1 passage; handoff: analyst", CreatedAt: now},
		},
		CreatedAt: now,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	c := validCase()
	blob, err := c.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	got, err := CaseFromSnapshot(blob)
	if err != nil {
		t.Fatalf("CaseFromSnapshot failed: %v", err)
	}
	if got.CaseID != c.CaseID || got.Turn != c.Turn || len(got.Transcript) != len(c.Transcript) {
		t.Fatalf("round trip diverged: %+v", got)
	}
}

func TestCaseFromSnapshotRejectsCorruption(t *testing.T) {
	if _, err := CaseFromSnapshot([]byte(`{not json`)); !errors.Is(err, ErrStateCorrupted) {
		t.Fatalf("expected ErrStateCorrupted for bad json, got %v", err)
	}

	c := validCase()
	c.Transcript[1].Turn = 9
	blob, _ := c.Snapshot()
	if _, err := CaseFromSnapshot(blob); !errors.Is(err, ErrStateCorrupted) {
		t.Fatalf("expected ErrStateCorrupted for record beyond turn counter, got %v", err)
	}
}

func TestValidateOrdering(t *testing.T) {
	c := validCase()
	c.Transcript[0].Turn = 1
	c.Transcript[1].Turn = 0
	if err := c.Validate(); err == nil {
		t.Fatalf("expected ordering violation")
	}
}

func TestValidateApprovalCaseMatch(t *testing.T) {
	c := validCase()
	c.PendingApproval = &Approval{ApprovalID: "ap_1", CaseID: "case_other", Status: ApprovalStatusPending, CreatedAt: time.Now()}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected mismatch violation")
	}
}

func TestAppendStampsTurnIndex(t *testing.T) {
	c := validCase()
	c.Append(TurnRecord{AgentID: AgentAnalyst, Kind: TurnKindMessage, Text: "draft; handoff: guard"})
	rec := c.Transcript.Last()
	if rec.Turn != c.Turn {
		t.Fatalf("append must stamp the current turn, got %d want %d", rec.Turn, c.Turn)
	}
	if rec.CreatedAt.IsZero() {
		t.Fatalf("append must stamp a timestamp")
	}
}

func TestTranscriptHelpers(t *testing.T) {
	c := validCase()
	if c.Transcript.Last().AgentID != AgentRetrieve {
		t.Fatalf("unexpected last record")
	}
	if c.Transcript.LastBy(AgentPlanner) == nil {
		t.Fatalf("expected planner record")
	}
	if !c.Transcript.Mentions(AgentAnalyst) {
		t.Fatalf("handoff mention not detected")
	}
	if c.Transcript.Mentions(AgentGuard) {
		t.Fatalf("false mention detected")
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := validCase()
	c.PendingApproval = &Approval{ApprovalID: "ap_1", CaseID: c.CaseID, Status: ApprovalStatusPending, CreatedAt: time.Now()}

	clone := c.Clone()
	clone.Transcript[0].Text = "mutated"
	clone.PendingApproval.Status = ApprovalStatusDenied

	if c.Transcript[0].Text == "mutated" {
		t.Fatalf("transcript shared between clone and original")
	}
	if c.PendingApproval.Status != ApprovalStatusPending {
		t.Fatalf("approval shared between clone and original")
	}
}
