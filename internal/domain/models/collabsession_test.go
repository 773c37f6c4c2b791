package models

import "testing"

func TestClone_IsDeep(t *testing.T) {
	orig := CollabSession{
		SessionID:    "abc",
		Participants: []string{"alice"},
		Items: []CartLineItem{{
			ProductID: "sofa",
			Votes:     []Vote{{UserID: "alice", Value: VoteUpValue}},
			Comments:  []Comment{{ID: "c1", Text: "nice"}},
		}},
	}

	cp := orig.Clone()
	cp.Participants[0] = "mallory"
	cp.Items[0].Quantity = 9
	cp.Items[0].Votes[0].Value = VoteDownValue
	cp.Items[0].Comments[0].Text = "edited"

	if orig.Participants[0] != "alice" {
		t.Error("participants aliased")
	}
	if orig.Items[0].Quantity != 0 {
		t.Error("items aliased")
	}
	if orig.Items[0].Votes[0].Value != VoteUpValue {
		t.Error("votes aliased")
	}
	if orig.Items[0].Comments[0].Text != "nice" {
		t.Error("comments aliased")
	}
}

func TestClone_NeverNil(t *testing.T) {
	cp := CollabSession{Items: []CartLineItem{{ProductID: "x"}}}.Clone()
	if cp.Participants == nil || cp.Items[0].Votes == nil || cp.Items[0].Comments == nil {
		t.Errorf("expected empty non-nil slices, got %+v", cp)
	}
}

func TestLookups(t *testing.T) {
	s := CollabSession{
		Participants: []string{"alice", "bob"},
		Items: []CartLineItem{
			{ProductID: "a"},
			{ProductID: "b", Votes: []Vote{{UserID: "alice", Value: 1}, {UserID: "bob", Value: 1}, {UserID: "carol", Value: -1}}},
		},
	}
	if !s.HasParticipant("bob") || s.HasParticipant("carol") {
		t.Error("HasParticipant mismatch")
	}
	if s.ItemIndex("b") != 1 || s.ItemIndex("z") != -1 {
		t.Error("ItemIndex mismatch")
	}
	if got := s.Items[1].VoteIndex("carol"); got != 2 {
		t.Errorf("VoteIndex: got %d", got)
	}
	if got := s.Items[1].Score(); got != 1 {
		t.Errorf("Score: got %d, want 1", got)
	}
}
