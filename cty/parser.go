// Package cty resolves receiver callsigns to DXCC countries using the
// cty.plist prefix database. Exact-callsign entries match only their full
// call; everything else resolves through a read-only longest-prefix trie.
// A bounded LRU memoizes portable-aware lookups (hits and misses) so the
// per-spot country aggregation never rescans the database.
package cty

import (
	"container/list"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"howett.net/plist"
)

// Unknown is the country reported for callsigns the database cannot place.
const Unknown = "Unknown"

// PrefixInfo describes the metadata stored for each cty.plist entry.
type PrefixInfo struct {
	Country       string  `plist:"Country"`
	Prefix        string  `plist:"Prefix"`
	ADIF          int     `plist:"ADIF"`
	CQZone        int     `plist:"CQZone"`
	ITUZone       int     `plist:"ITUZone"`
	Continent     string  `plist:"Continent"`
	Latitude      float64 `plist:"Latitude"`
	Longitude     float64 `plist:"Longitude"`
	GMTOffset     float64 `plist:"GMTOffset"`
	ExactCallsign bool    `plist:"ExactCallsign"`
}

// Database answers callsign-to-country queries against a loaded cty.plist.
// It is safe for concurrent use: the entry map and trie are read-only after
// load, and the lookup cache is guarded by its own mutex.
type Database struct {
	entries map[string]PrefixInfo
	// trie holds only non-exact keys so an exact-callsign entry can never
	// serve as a prefix for a longer call. Walking the callsign bytes and
	// remembering the last terminal seen yields the longest matching prefix
	// in O(len(callsign)).
	trie prefixTrie

	// cache memoizes normalized portable lookups with a bounded LRU.
	cacheMu   sync.Mutex
	cacheList *list.List
	cacheMap  map[string]*list.Element
	cacheCap  int

	totalLookups atomic.Uint64
	cacheHits    atomic.Uint64
	cacheEntries atomic.Uint64
	resolved     atomic.Uint64
	unknowns     atomic.Uint64
}

type cacheEntry struct {
	info *PrefixInfo
	ok   bool
}

type cacheItem struct {
	key   string
	entry cacheEntry
}

// prefixTrie is a read-only trie over the non-exact cty keys. Nodes live in
// a slice so child links are small integer indices rather than pointers.
type prefixTrie struct {
	nodes []trieNode
}

type trieNode struct {
	next        map[byte]int
	terminalKey string
}

func buildPrefixTrie(keys []string) prefixTrie {
	tr := prefixTrie{nodes: []trieNode{{next: make(map[byte]int)}}}
	for _, key := range keys {
		if key == "" {
			continue
		}
		state := 0
		for i := 0; i < len(key); i++ {
			ch := key[i]
			next := tr.nodes[state].next
			if next == nil {
				next = make(map[byte]int)
				tr.nodes[state].next = next
			}
			child, ok := next[ch]
			if !ok {
				child = len(tr.nodes)
				tr.nodes = append(tr.nodes, trieNode{})
				next[ch] = child
			}
			state = child
		}
		tr.nodes[state].terminalKey = key
	}
	return tr
}

func (tr *prefixTrie) longestPrefixKey(cs string) (string, bool) {
	if tr == nil || len(tr.nodes) == 0 || cs == "" {
		return "", false
	}
	state := 0
	best := ""
	for i := 0; i < len(cs); i++ {
		next := tr.nodes[state].next
		if next == nil {
			break
		}
		child, ok := next[cs[i]]
		if !ok {
			break
		}
		state = child
		if tr.nodes[state].terminalKey != "" {
			best = tr.nodes[state].terminalKey
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

const defaultCacheCapacity = 50000

// LookupMetrics summarizes callsign lookup behavior.
type LookupMetrics struct {
	TotalLookups uint64
	CacheHits    uint64
	CacheEntries uint64
	Resolved     uint64
	Unknown      uint64
}

// Load reads cty.plist from path into a lookup database.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cty plist: %w", err)
	}
	defer f.Close()
	return FromReader(f)
}

// FromReader decodes cty data from r. Keys are normalized to uppercase, and
// the longest-prefix trie is built once here from the non-exact entries.
func FromReader(r io.ReadSeeker) (*Database, error) {
	entries, err := decodeEntries(r)
	if err != nil {
		return nil, err
	}
	prefixKeys := make([]string, 0, len(entries))
	for k, v := range entries {
		if v.ExactCallsign {
			continue
		}
		prefixKeys = append(prefixKeys, k)
	}
	return &Database{
		entries:   entries,
		trie:      buildPrefixTrie(prefixKeys),
		cacheCap:  defaultCacheCapacity,
		cacheList: list.New(),
		cacheMap:  make(map[string]*list.Element, defaultCacheCapacity),
	}, nil
}

func decodeEntries(r io.ReadSeeker) (map[string]PrefixInfo, error) {
	var raw map[string]PrefixInfo
	decoder := plist.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode plist: %w", err)
	}
	entries := make(map[string]PrefixInfo, len(raw))
	for k, v := range raw {
		norm := strings.ToUpper(strings.TrimSpace(k))
		entries[norm] = v
	}
	return entries, nil
}

// Len reports the number of loaded entries.
func (db *Database) Len() int {
	if db == nil {
		return 0
	}
	return len(db.entries)
}

var operatingSuffixes = []string{"/QRP", "/P", "/M", "/MM", "/AM"}

// nonEntityDesignators are portable segments that never identify a DXCC
// entity on their own (beacon and operating designators).
var nonEntityDesignators = map[string]bool{
	"B": true, "P": true, "M": true, "MM": true, "AM": true, "QRP": true,
}

func normalizeCallsign(cs string) string {
	cs = strings.ToUpper(strings.TrimSpace(cs))
	for _, suf := range operatingSuffixes {
		if strings.HasSuffix(cs, suf) {
			return strings.TrimSuffix(cs, suf)
		}
	}
	return cs
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Lookup returns metadata for a callsign via exact match or longest prefix.
// It does not consult the cache; LookupPortable is the memoized front door.
func (db *Database) Lookup(cs string) (*PrefixInfo, bool) {
	if db == nil {
		return nil, false
	}
	return db.lookupNormalized(normalizeCallsign(cs))
}

func (db *Database) lookupNormalized(cs string) (*PrefixInfo, bool) {
	if info, ok := db.entries[cs]; ok {
		return cloneInfo(info), true
	}
	if key, ok := db.trie.longestPrefixKey(cs); ok {
		info := db.entries[key]
		return cloneInfo(info), true
	}
	return nil, false
}

// LookupPortable resolves a callsign with portable-designator awareness: for
// calls like EA8/OH6BG or OH6BG/EA8 the visited entity lives in the shorter
// segment, while designators such as /B or /7 keep the home entity. Results,
// including misses, are memoized in the LRU keyed by the normalized call.
func (db *Database) LookupPortable(cs string) (*PrefixInfo, bool) {
	if db == nil {
		return nil, false
	}
	cs = normalizeCallsign(cs)
	db.totalLookups.Add(1)
	if entry, ok := db.cacheGet(cs); ok {
		db.cacheHits.Add(1)
		if entry.ok {
			db.resolved.Add(1)
		} else {
			db.unknowns.Add(1)
		}
		return entry.info, entry.ok
	}

	info, ok := db.lookupPortableNoCache(cs)
	if ok {
		db.resolved.Add(1)
	} else {
		db.unknowns.Add(1)
	}

	entry := cacheEntry{info: info, ok: ok}
	db.cacheStore(cs, entry)
	return entry.info, entry.ok
}

func (db *Database) lookupPortableNoCache(cs string) (*PrefixInfo, bool) {
	parts := strings.Split(cs, "/")
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		a, b := parts[0], parts[1]
		if nonEntityDesignators[b] || allDigits(b) {
			if info, ok := db.lookupNormalized(a); ok {
				return info, true
			}
		} else if nonEntityDesignators[a] || allDigits(a) {
			if info, ok := db.lookupNormalized(b); ok {
				return info, true
			}
		} else {
			// Prefer the shorter segment: that is where the visited
			// entity prefix sits in both K1ABC/EA8 and EA8/K1ABC forms.
			first, second := a, b
			if len(b) <= len(a) {
				first, second = b, a
			}
			if info, ok := db.lookupNormalized(first); ok {
				return info, true
			}
			if info, ok := db.lookupNormalized(second); ok {
				return info, true
			}
		}
	}
	// Fall back to the full call so slash-bearing keys like IG9/ still match.
	return db.lookupNormalized(cs)
}

// Resolve returns the country for a callsign, or Unknown when the callsign
// is empty or no entry matches. It never fails; aggregation callers rely on
// the degraded value rather than an error.
func (db *Database) Resolve(callsign string) string {
	if db == nil {
		return Unknown
	}
	if strings.TrimSpace(callsign) == "" {
		return Unknown
	}
	info, ok := db.LookupPortable(callsign)
	if !ok || info.Country == "" {
		return Unknown
	}
	return info.Country
}

func cloneInfo(info PrefixInfo) *PrefixInfo {
	copy := info
	return &copy
}

func (db *Database) cacheGet(cs string) (cacheEntry, bool) {
	if db == nil || db.cacheCap <= 0 {
		return cacheEntry{}, false
	}
	db.cacheMu.Lock()
	defer db.cacheMu.Unlock()
	elem, ok := db.cacheMap[cs]
	if !ok {
		return cacheEntry{}, false
	}
	db.cacheList.MoveToFront(elem)
	item := elem.Value.(*cacheItem)
	return item.entry, true
}

func (db *Database) cacheStore(cs string, entry cacheEntry) {
	if db == nil || db.cacheCap <= 0 {
		return
	}
	db.cacheMu.Lock()
	defer db.cacheMu.Unlock()

	// Update in-place when present to avoid churn.
	if elem, ok := db.cacheMap[cs]; ok {
		elem.Value.(*cacheItem).entry = entry
		db.cacheList.MoveToFront(elem)
		db.cacheEntries.Store(uint64(len(db.cacheMap)))
		return
	}

	elem := db.cacheList.PushFront(&cacheItem{key: cs, entry: entry})
	db.cacheMap[cs] = elem

	if len(db.cacheMap) > db.cacheCap {
		if tail := db.cacheList.Back(); tail != nil {
			db.cacheList.Remove(tail)
			if item, ok := tail.Value.(*cacheItem); ok {
				delete(db.cacheMap, item.key)
			}
		}
	}
	db.cacheEntries.Store(uint64(len(db.cacheMap)))
}

// Metrics returns a snapshot of lookup and cache counters.
func (db *Database) Metrics() LookupMetrics {
	if db == nil {
		return LookupMetrics{}
	}
	return LookupMetrics{
		TotalLookups: db.totalLookups.Load(),
		CacheHits:    db.cacheHits.Load(),
		CacheEntries: db.cacheEntries.Load(),
		Resolved:     db.resolved.Load(),
		Unknown:      db.unknowns.Load(),
	}
}
