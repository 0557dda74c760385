package identity

import "testing"

func TestGateNotifiesOnChangeOnly(t *testing.T) {
	g := NewGate()
	var seen []string
	unsubscribe := g.OnChange(func(id *Identity) {
		if id == nil {
			seen = append(seen, "<none>")
			return
		}
		seen = append(seen, id.ID)
	})

	g.SignIn(Identity{ID: "1"})
	g.SignIn(Identity{ID: "1", Email: "a@example.com"})
	g.SignIn(Identity{ID: "2"})
	g.SignOut()
	g.SignOut()
	unsubscribe()
	g.SignIn(Identity{ID: "3"})

	want := []string{"1", "2", "<none>"}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
	if cur := g.Current(); cur == nil || cur.ID != "3" {
		t.Fatalf("current = %v, want 3", cur)
	}
}

func TestGateCurrentIsACopy(t *testing.T) {
	g := NewGate()
	if g.Current() != nil {
		t.Fatalf("new gate should be signed out")
	}
	g.SignIn(Identity{ID: "1"})
	cur := g.Current()
	cur.ID = "changed"
	if got := g.Current().ID; got != "1" {
		t.Fatalf("current id = %q, want %q", got, "1")
	}
}

func TestStaticProvider(t *testing.T) {
	p := Static(Identity{ID: "7"})
	if cur := p.Current(); cur == nil || cur.ID != "7" {
		t.Fatalf("current = %v, want 7", cur)
	}
	p.OnChange(func(*Identity) { t.Fatalf("static provider never changes") })()
}
