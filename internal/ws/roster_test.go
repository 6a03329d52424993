package ws

import "testing"

func TestRoster_JoinLeaveLifecycle(t *testing.T) {
	r := NewRoster()
	c1 := &Connection{ID: "conn-1", UserID: "alice"}
	c2 := &Connection{ID: "conn-2", UserID: "bob"}

	if first := r.Join(c1, "conv-a"); !first {
		t.Error("first join should report first=true")
	}
	if first := r.Join(c2, "conv-a"); first {
		t.Error("second join must not report first=true")
	}
	if n := r.Audience("conv-a"); n != 2 {
		t.Errorf("audience = %d, want 2", n)
	}

	if empty := r.Leave(c1, "conv-a"); empty {
		t.Error("conversation still has an audience")
	}
	if empty := r.Leave(c2, "conv-a"); !empty {
		t.Error("last leave should report empty=true")
	}
	if n := r.Audience("conv-a"); n != 0 {
		t.Errorf("audience = %d, want 0", n)
	}
}

func TestRoster_DropReturnsEmptiedConversations(t *testing.T) {
	r := NewRoster()
	c1 := &Connection{ID: "conn-1", UserID: "alice"}
	c2 := &Connection{ID: "conn-2", UserID: "bob"}

	r.Join(c1, "conv-a")
	r.Join(c1, "conv-b")
	r.Join(c2, "conv-a")

	emptied := r.Drop(c1.ID)
	if len(emptied) != 1 || emptied[0] != "conv-b" {
		t.Errorf("emptied = %v, want [conv-b]", emptied)
	}
	if n := r.Audience("conv-a"); n != 1 {
		t.Errorf("conv-a audience = %d, want 1", n)
	}
}

func TestRoster_LeaveUnknownConversation(t *testing.T) {
	r := NewRoster()
	c := &Connection{ID: "conn-1", UserID: "alice"}
	if empty := r.Leave(c, "never-joined"); empty {
		t.Error("leaving an unjoined conversation must not report empty")
	}
}

func TestConnectionManager_UserTracking(t *testing.T) {
	cm := NewConnectionManager()

	// Two tabs for the same user.
	a1 := &Connection{ID: "a1", UserID: "alice", Fd: 10}
	a2 := &Connection{ID: "a2", UserID: "alice", Fd: 11}
	cm.Add(a1)
	cm.Add(a2)

	if n := len(cm.ByUser("alice")); n != 2 {
		t.Fatalf("ByUser = %d connections, want 2", n)
	}

	removed, last := cm.Remove("a1")
	if !removed || last {
		t.Errorf("Remove(a1) = (%v, %v), want (true, false)", removed, last)
	}
	removed, last = cm.Remove("a2")
	if !removed || !last {
		t.Errorf("Remove(a2) = (%v, %v), want (true, true)", removed, last)
	}

	removed, _ = cm.Remove("a2")
	if removed {
		t.Error("second Remove must report not found")
	}
}
