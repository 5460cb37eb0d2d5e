package locate

import (
	"fmt"
	"testing"
)

func TestCacheGetSetClear(t *testing.T) {
	c := NewCache(0)
	key := LookupKey("some text", "some", DefaultOptions())

	if _, ok := c.Get(key); ok {
		t.Error("empty cache reported a hit")
	}

	want := &Match{Start: 0, End: 4, Exact: true, Confidence: 1.0}
	c.Set(key, want)
	got, ok := c.Get(key)
	if !ok || got != want {
		t.Errorf("get after set: got %+v ok=%v", got, ok)
	}

	c.Clear()
	if _, ok := c.Get(key); ok {
		t.Error("clear did not empty the cache")
	}
}

func TestCacheNegativeResult(t *testing.T) {
	c := NewCache(0)
	key := LookupKey("text", "gone", DefaultOptions())
	c.Set(key, nil)
	got, ok := c.Get(key)
	if !ok {
		t.Fatal("cached miss not found")
	}
	if got != nil {
		t.Errorf("cached miss: got %+v, want nil", got)
	}
}

func TestCacheKeyUniqueness(t *testing.T) {
	base := LookupKey("text one", "quote", DefaultOptions())
	cases := []struct {
		key         string
		description string
	}{
		{LookupKey("text two", "quote", DefaultOptions()), "different text"},
		{LookupKey("text one", "other", DefaultOptions()), "different quote"},
		{LookupKey("text one", "quote", Options{PreferIndex: 3}), "different hint"},
		{LookupKey("text one", "quote", Options{PreferIndex: NoHint, LeftCtx: "l"}), "different context"},
	}
	for _, tc := range cases {
		if tc.key == base {
			t.Errorf("%s: key collided with base", tc.description)
		}
	}
	if again := LookupKey("text one", "quote", DefaultOptions()); again != base {
		t.Error("identical requests produced different keys")
	}
}

func TestCacheLRUEviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", &Match{Start: 0, End: 1})
	c.Set("b", &Match{Start: 1, End: 2})
	c.Get("a") // refresh a, making b the LRU
	c.Set("c", &Match{Start: 2, End: 3})

	if _, ok := c.Get("b"); ok {
		t.Error("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should have survived eviction")
	}
}

func TestCacheSnapshot(t *testing.T) {
	c := NewCache(0)
	c.Set("k", &Match{})
	c.Get("k")
	c.Get("absent")

	snap := c.Snapshot()
	if snap["entries"] != 1 || snap["hits"] != 1 || snap["misses"] != 2 {
		t.Errorf("snapshot %v, want entries=1 hits=1 misses=2", snap)
	}
}

func TestCachedLocateMemoizes(t *testing.T) {
	c := NewCache(0)
	haystack := "hello world today"

	first := CachedLocate(c, haystack, "world", DefaultOptions())
	second := CachedLocate(c, haystack, "world", DefaultOptions())
	if first == nil || second == nil {
		t.Fatal("expected matches")
	}
	if first != second {
		t.Error("second lookup should return the cached pointer")
	}
	if snap := c.Snapshot(); snap["hits"] != 1 {
		t.Errorf("expected one cache hit, snapshot %v", snap)
	}
}

func TestRequestKeyContract(t *testing.T) {
	policy := map[string]string{"b": "2", "a": "1"}
	k1 := RequestKey(16, 0.5, "v3", policy, "doc", "prompt text")
	k2 := RequestKey(16, 0.5, "v3", map[string]string{"a": "1", "b": "2"}, "doc", "prompt text")
	if k1 != k2 {
		t.Error("policy key order must not affect the key")
	}

	variants := []string{
		RequestKey(17, 0.5, "v3", policy, "doc", "prompt text"),
		RequestKey(16, 0.6, "v3", policy, "doc", "prompt text"),
		RequestKey(16, 0.5, "v4", policy, "doc", "prompt text"),
		RequestKey(16, 0.5, "v3", map[string]string{"a": "1"}, "doc", "prompt text"),
		RequestKey(16, 0.5, "v3", policy, "doc2", "prompt text"),
		RequestKey(16, 0.5, "v3", policy, "doc", "other text"),
	}
	seen := map[string]bool{k1: true}
	for i, v := range variants {
		if seen[v] {
			t.Errorf("variant %d collided: %s", i, v)
		}
		seen[v] = true
	}
}

func TestCacheMissCounting(t *testing.T) {
	c := NewCache(0)
	for i := 0; i < 5; i++ {
		c.Get(fmt.Sprintf("missing-%d", i))
	}
	if snap := c.Snapshot(); snap["misses"] != 5 {
		t.Errorf("misses = %d, want 5", snap["misses"])
	}
}
