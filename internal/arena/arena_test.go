package arena

import (
	"sync"
	"testing"
)

func TestTable_InsertGet(t *testing.T) {
	var table Table[string]

	a := table.Insert("a")
	b := table.Insert("b")

	if a == Nil || b == Nil {
		t.Fatal("Insert returned the Nil handle")
	}
	if a == b {
		t.Fatal("two inserts returned the same handle")
	}

	if v, ok := table.Get(a); !ok || v != "a" {
		t.Errorf("Get(a) = %q, %v, want \"a\", true", v, ok)
	}
	if v, ok := table.Get(b); !ok || v != "b" {
		t.Errorf("Get(b) = %q, %v, want \"b\", true", v, ok)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}

func TestTable_NilHandle(t *testing.T) {
	var table Table[int]
	table.Insert(1)

	if _, ok := table.Get(Nil); ok {
		t.Error("Get(Nil) resolved")
	}
	if _, ok := table.Remove(Nil); ok {
		t.Error("Remove(Nil) succeeded")
	}
}

func TestTable_StaleHandleAfterReuse(t *testing.T) {
	var table Table[int]

	old := table.Insert(1)
	if _, ok := table.Remove(old); !ok {
		t.Fatal("Remove failed")
	}

	reused := table.Insert(2)
	if uint32(reused) != uint32(old) {
		t.Fatalf("slot not reused: old=%x new=%x", old, reused)
	}

	if _, ok := table.Get(old); ok {
		t.Error("stale handle resolved after slot reuse")
	}
	if v, ok := table.Get(reused); !ok || v != 2 {
		t.Errorf("Get(reused) = %d, %v, want 2, true", v, ok)
	}
}

func TestTable_RemoveTwice(t *testing.T) {
	var table Table[int]
	h := table.Insert(7)

	if v, ok := table.Remove(h); !ok || v != 7 {
		t.Errorf("first Remove = %d, %v, want 7, true", v, ok)
	}
	if _, ok := table.Remove(h); ok {
		t.Error("second Remove succeeded")
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestTable_Values(t *testing.T) {
	var table Table[int]
	handles := make([]Handle, 5)
	for i := range handles {
		handles[i] = table.Insert(i)
	}
	table.Remove(handles[1])
	table.Remove(handles[3])

	values := table.Values()
	want := []int{0, 2, 4}
	if len(values) != len(want) {
		t.Fatalf("Values() = %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Errorf("Values()[%d] = %d, want %d", i, values[i], want[i])
		}
	}
}

func TestTable_Concurrent(t *testing.T) {
	var table Table[int]
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h := table.Insert(seed*1000 + i)
				if v, ok := table.Get(h); !ok || v != seed*1000+i {
					t.Errorf("Get after Insert = %d, %v", v, ok)
					return
				}
				table.Remove(h)
			}
		}(w)
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}
