package controller

import (
	"testing"

	"dealflow/models"
)

func conversationWithParticipants(t *testing.T, participants []models.Participant) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{Subject: "Intro"}
	if err := conv.SetParticipants(participants); err != nil {
		t.Fatalf("SetParticipants failed: %v", err)
	}
	return conv
}

func TestDeriveRecipients(t *testing.T) {
	conv := conversationWithParticipants(t, []models.Participant{
		{Email: "alice@startup.io", Role: "from"},
		{Email: "me@example.com", Role: "to"},
		{Email: "carol@fund.vc", Role: "cc"},
		{Email: "alice@startup.io", Role: "from"}, // duplicate across messages
	})

	reply := deriveRecipients(conv, "me@example.com", false)
	if len(reply) != 1 || reply[0] != "alice@startup.io" {
		t.Errorf("reply recipients = %v, want the thread's senders", reply)
	}

	forward := deriveRecipients(conv, "me@example.com", true)
	if len(forward) != 2 {
		t.Fatalf("forward recipients = %v, want every non-self participant", forward)
	}
	for _, addr := range forward {
		if addr == "me@example.com" {
			t.Error("forward recipients include the caller's own address")
		}
	}
}

func TestDeriveRecipientsOwnMessagesOnly(t *testing.T) {
	conv := conversationWithParticipants(t, []models.Participant{
		{Email: "me@example.com", Role: "from"},
		{Email: "alice@startup.io", Role: "to"},
	})

	// A thread where only the account has sent: reply has nobody to answer
	reply := deriveRecipients(conv, "me@example.com", false)
	if len(reply) != 0 {
		t.Errorf("reply recipients = %v, want none", reply)
	}
}

func TestFilterConversations(t *testing.T) {
	name := "Alice Founder"
	snippet := "numbers attached"

	convs := []models.Conversation{
		{Subject: "Quarterly update", Snippet: &snippet},
		{Subject: "Dinner plans"},
	}
	if err := convs[0].SetParticipants([]models.Participant{
		{Email: "alice@startup.io", Role: "from", Name: &name},
	}); err != nil {
		t.Fatal(err)
	}
	if err := convs[1].SetParticipants([]models.Participant{
		{Email: "bob@fund.vc", Role: "from"},
	}); err != nil {
		t.Fatal(err)
	}

	if got := filterConversations(convs, "", ""); len(got) != 2 {
		t.Errorf("no filters dropped conversations: %d", len(got))
	}
	if got := filterConversations(convs, "quarterly", ""); len(got) != 1 || got[0].Subject != "Quarterly update" {
		t.Errorf("subject search = %v", got)
	}
	if got := filterConversations(convs, "numbers", ""); len(got) != 1 {
		t.Errorf("snippet search returned %d results", len(got))
	}
	if got := filterConversations(convs, "", "alice"); len(got) != 1 || got[0].Subject != "Quarterly update" {
		t.Errorf("participant email filter = %v", got)
	}
	if got := filterConversations(convs, "", "founder"); len(got) != 1 {
		t.Errorf("participant name filter returned %d results", len(got))
	}
	if got := filterConversations(convs, "quarterly", "bob"); len(got) != 0 {
		t.Errorf("combined filters should intersect, got %d", len(got))
	}
}
