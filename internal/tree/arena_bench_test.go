package tree

import (
	"runtime"
	"testing"

	"github.com/dustin/go-humanize"

	"github.com/kimhsiao/homeinv/backend/internal/models"
)

// buildHouse creates rooms*shelves*boxes nodes under a single root.
func buildHouse(rooms, shelves, boxes int) []*models.Node {
	root := node("house", nil)
	nodes := []*models.Node{root}
	for r := 0; r < rooms; r++ {
		room := node("room", root)
		nodes = append(nodes, room)
		for s := 0; s < shelves; s++ {
			shelf := node("shelf", room)
			nodes = append(nodes, shelf)
			for b := 0; b < boxes; b++ {
				nodes = append(nodes, node("box", shelf))
			}
		}
	}
	return nodes
}

func heapAlloc() uint64 {
	runtime.GC()
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// TestArena_AssembleDoesNotAccumulate repeatedly assembles the same arena and
// checks that retained heap stays flat.
func TestArena_AssembleDoesNotAccumulate(t *testing.T) {
	a := NewArena(buildHouse(20, 10, 10))
	a.Assemble()

	before := heapAlloc()
	for i := 0; i < 200; i++ {
		a.Assemble()
	}
	after := heapAlloc()

	t.Logf("heap before: %s, after: %s", humanize.Bytes(before), humanize.Bytes(after))
	if after > before && after-before > 5*1024*1024 {
		t.Errorf("retained heap grew by %s over repeated Assemble", humanize.Bytes(after-before))
	}
}

func BenchmarkArena_Assemble(b *testing.B) {
	nodes := buildHouse(20, 10, 10)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewArena(nodes).Assemble()
	}
}

func BenchmarkArena_ReflowSubtree(b *testing.B) {
	nodes := buildHouse(20, 10, 10)
	a := NewArena(nodes)
	room := nodes[1]
	garage := node("garage", nil)
	house := nodes[0]

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Alternate the room between two roots so every iteration rewrites the subtree.
		if i%2 == 0 {
			Place(room, garage)
		} else {
			Place(room, house)
		}
		a.Reflow(room.ID)
	}
}

func BenchmarkDecode(b *testing.B) {
	nodes := buildHouse(1, 1, 1)
	path := ChildPath(nodes[len(nodes)-1])
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(path); err != nil {
			b.Fatal(err)
		}
	}
}
