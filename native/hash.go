package native

import (
	"bytes"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/wippyai/nativecoll"
	"github.com/wippyai/nativecoll/pool"
)

const (
	HashTableSize = 24
	HashEntrySize = 20
	HashIndexSize = 16

	initialMax = 15
)

// field offsets
const (
	htPool    = 0
	htBuckets = 4
	htCount   = 8
	htMax     = 12
	htSeed    = 16
	htFree    = 20

	heNext = 0
	heHash = 4
	heKey  = 8
	heKlen = 12
	heVal  = 16

	hiTable = 0
	hiThis  = 4
	hiNext  = 8
	hiIndex = 12
)

type hashTable struct {
	pool    uint32
	buckets nativecoll.Ptr
	count   uint32
	max     uint32
	seed    uint32
	free    nativecoll.Ptr
}

type hashEntry struct {
	next nativecoll.Ptr
	hash uint32
	key  nativecoll.Ptr
	klen uint32
	val  nativecoll.Ptr
}

func (r *Runtime) readTable(ht nativecoll.Ptr) (hashTable, Status) {
	var f [6]uint32
	if st := readFields(r.mem, ht, f[:]); st != StatusOK {
		return hashTable{}, st
	}
	t := hashTable{
		pool:    f[0],
		buckets: nativecoll.Ptr(f[1]),
		count:   f[2],
		max:     f[3],
		seed:    f[4],
		free:    nativecoll.Ptr(f[5]),
	}
	// max+1 must be a power of two for masking
	if t.max&(t.max+1) != 0 || t.buckets == nativecoll.Null {
		return hashTable{}, StatusBadArgument
	}
	return t, StatusOK
}

func (r *Runtime) writeTable(ht nativecoll.Ptr, t hashTable) Status {
	return writeFields(r.mem, ht, t.pool, uint32(t.buckets), t.count, t.max, t.seed, uint32(t.free))
}

func (r *Runtime) readEntry(he nativecoll.Ptr) (hashEntry, Status) {
	var f [5]uint32
	if st := readFields(r.mem, he, f[:]); st != StatusOK {
		return hashEntry{}, st
	}
	return hashEntry{
		next: nativecoll.Ptr(f[0]),
		hash: f[1],
		key:  nativecoll.Ptr(f[2]),
		klen: f[3],
		val:  nativecoll.Ptr(f[4]),
	}, StatusOK
}

func (r *Runtime) writeEntry(he nativecoll.Ptr, e hashEntry) Status {
	return writeFields(r.mem, he, uint32(e.next), e.hash, uint32(e.key), e.klen, uint32(e.val))
}

// times33 is the classic multiply-by-33 string hash, started from the
// table's seed.
func times33(seed uint32, key []byte) uint32 {
	h := seed
	for _, c := range key {
		h = h*33 + uint32(c)
	}
	return h
}

// HashMake allocates an empty table in p.
func (r *Runtime) HashMake(p *pool.Pool) (nativecoll.Ptr, Status) {
	return r.hashMake(p, initialMax, rand.Uint32())
}

func (r *Runtime) hashMake(p *pool.Pool, maxIdx, seed uint32) (nativecoll.Ptr, Status) {
	buckets, err := p.Calloc((maxIdx+1)*4, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	ht, err := p.Alloc(HashTableSize, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	st := r.writeTable(ht, hashTable{
		pool:    uint32(p.ID()),
		buckets: buckets,
		max:     maxIdx,
		seed:    seed,
	})
	if st != StatusOK {
		return nativecoll.Null, st
	}
	return ht, StatusOK
}

// keyEquals compares the key stored at e with key.
func (r *Runtime) keyEquals(e hashEntry, hash uint32, key []byte) (bool, Status) {
	if e.hash != hash || e.klen != uint32(len(key)) {
		return false, StatusOK
	}
	if e.klen == 0 {
		return true, StatusOK
	}
	stored, err := r.mem.Read(uint32(e.key), e.klen)
	if err != nil {
		return false, StatusFault
	}
	return bytes.Equal(stored, key), StatusOK
}

// findLink returns the address of the link (a bucket slot or an entry's
// next field) pointing at the entry for key, and that entry. The entry is
// Null when key is absent; the link then points at the chain's terminating
// Null, where a new entry belongs.
func (r *Runtime) findLink(t hashTable, key []byte) (link, he nativecoll.Ptr, hash uint32, st Status) {
	hash = times33(t.seed, key)
	link = t.buckets + nativecoll.Ptr((hash&t.max)*4)
	for {
		next, st := load32(r.mem, link)
		if st != StatusOK {
			return 0, 0, 0, st
		}
		if next == 0 {
			return link, nativecoll.Null, hash, StatusOK
		}
		he = nativecoll.Ptr(next)
		e, st := r.readEntry(he)
		if st != StatusOK {
			return 0, 0, 0, st
		}
		eq, st := r.keyEquals(e, hash, key)
		if st != StatusOK {
			return 0, 0, 0, st
		}
		if eq {
			return link, he, hash, StatusOK
		}
		link = he + heNext
	}
}

// HashGet returns the value stored under key, or Null.
func (r *Runtime) HashGet(ht nativecoll.Ptr, key []byte) (nativecoll.Ptr, Status) {
	t, st := r.readTable(ht)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	_, he, _, st := r.findLink(t, key)
	if st != StatusOK || he == nativecoll.Null {
		return nativecoll.Null, st
	}
	val, st := load32(r.mem, he+heVal)
	return nativecoll.Ptr(val), st
}

// HashSet stores val under key. The key bytes are copied into the table's
// pool the first time key is inserted. A Null val removes the entry.
func (r *Runtime) HashSet(ht nativecoll.Ptr, key []byte, val nativecoll.Ptr) Status {
	t, st := r.readTable(ht)
	if st != StatusOK {
		return st
	}
	link, he, hash, st := r.findLink(t, key)
	if st != StatusOK {
		return st
	}

	if he != nativecoll.Null {
		if val != nativecoll.Null {
			return store32(r.mem, he+heVal, uint32(val))
		}
		// unlink and recycle
		next, st := load32(r.mem, he+heNext)
		if st != StatusOK {
			return st
		}
		if st := store32(r.mem, link, next); st != StatusOK {
			return st
		}
		if st := r.writeEntry(he, hashEntry{next: t.free}); st != StatusOK {
			return st
		}
		t.free = he
		t.count--
		return r.writeTable(ht, t)
	}

	if val == nativecoll.Null {
		return StatusOK
	}

	p, st := r.owner(t.pool)
	if st != StatusOK {
		return st
	}
	kp := nativecoll.Null
	if len(key) > 0 {
		var err error
		if kp, err = p.Alloc(uint32(len(key)), 1); err != nil {
			return StatusOf(err)
		}
		if err := r.mem.Write(uint32(kp), key); err != nil {
			return StatusFault
		}
	}

	if t.free != nativecoll.Null {
		he = t.free
		next, st := load32(r.mem, he+heNext)
		if st != StatusOK {
			return st
		}
		t.free = nativecoll.Ptr(next)
	} else {
		var err error
		if he, err = p.Alloc(HashEntrySize, 0); err != nil {
			return StatusOf(err)
		}
	}
	e := hashEntry{hash: hash, key: kp, klen: uint32(len(key)), val: val}
	if st := r.writeEntry(he, e); st != StatusOK {
		return st
	}
	if st := store32(r.mem, link, uint32(he)); st != StatusOK {
		return st
	}

	t.count++
	if t.count > t.max {
		if st := r.hashExpand(p, ht, &t); st != StatusOK {
			return st
		}
	}
	return r.writeTable(ht, t)
}

// hashExpand doubles the bucket array and relinks every entry.
func (r *Runtime) hashExpand(p *pool.Pool, ht nativecoll.Ptr, t *hashTable) Status {
	entries, st := r.collectEntries(*t)
	if st != StatusOK {
		return st
	}
	newMax := t.max*2 + 1
	buckets, err := p.Calloc((newMax+1)*4, 0)
	if err != nil {
		return StatusOf(err)
	}
	for _, he := range entries {
		hash, st := load32(r.mem, he+heHash)
		if st != StatusOK {
			return st
		}
		slot := buckets + nativecoll.Ptr((hash&newMax)*4)
		head, st := load32(r.mem, slot)
		if st != StatusOK {
			return st
		}
		if st := store32(r.mem, he+heNext, head); st != StatusOK {
			return st
		}
		if st := store32(r.mem, slot, uint32(he)); st != StatusOK {
			return st
		}
	}

	r.log.Debug("hash table expanded",
		zap.Uint32("table", uint32(ht)),
		zap.Uint32("max", newMax),
		zap.Uint32("count", t.count))

	t.buckets = buckets
	t.max = newMax
	return StatusOK
}

// collectEntries lists every live entry in bucket order.
func (r *Runtime) collectEntries(t hashTable) ([]nativecoll.Ptr, Status) {
	out := make([]nativecoll.Ptr, 0, t.count)
	for i := uint32(0); i <= t.max; i++ {
		next, st := load32(r.mem, t.buckets+nativecoll.Ptr(i*4))
		if st != StatusOK {
			return nil, st
		}
		for next != 0 {
			he := nativecoll.Ptr(next)
			out = append(out, he)
			if next, st = load32(r.mem, he+heNext); st != StatusOK {
				return nil, st
			}
		}
	}
	return out, StatusOK
}

// HashPool returns the pool the table allocates from.
func (r *Runtime) HashPool(ht nativecoll.Ptr) (pool.ID, Status) {
	t, st := r.readTable(ht)
	if st != StatusOK {
		return 0, st
	}
	return pool.ID(t.pool), StatusOK
}

// HashCount returns the number of entries.
func (r *Runtime) HashCount(ht nativecoll.Ptr) (uint32, Status) {
	t, st := r.readTable(ht)
	if st != StatusOK {
		return 0, st
	}
	return t.count, StatusOK
}

// HashClear removes every entry, keeping the bucket array.
func (r *Runtime) HashClear(ht nativecoll.Ptr) Status {
	t, st := r.readTable(ht)
	if st != StatusOK {
		return st
	}
	entries, st := r.collectEntries(t)
	if st != StatusOK {
		return st
	}
	for _, he := range entries {
		if st := r.writeEntry(he, hashEntry{next: t.free}); st != StatusOK {
			return st
		}
		t.free = he
	}
	if err := r.mem.Fill(uint32(t.buckets), (t.max+1)*4, 0); err != nil {
		return StatusFault
	}
	t.count = 0
	return r.writeTable(ht, t)
}

// HashCopy duplicates the table into p. Keys are copied; values are the
// same pointers as in the source.
func (r *Runtime) HashCopy(p *pool.Pool, ht nativecoll.Ptr) (nativecoll.Ptr, Status) {
	t, st := r.readTable(ht)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	dst, st := r.hashMake(p, t.max, t.seed)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	entries, st := r.collectEntries(t)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	for _, he := range entries {
		e, st := r.readEntry(he)
		if st != StatusOK {
			return nativecoll.Null, st
		}
		key, st := r.readBytes(e.key, e.klen)
		if st != StatusOK {
			return nativecoll.Null, st
		}
		if st := r.HashSet(dst, key, e.val); st != StatusOK {
			return nativecoll.Null, st
		}
	}
	return dst, StatusOK
}

// readBytes copies n bytes at addr out of native memory.
func (r *Runtime) readBytes(addr nativecoll.Ptr, n uint32) ([]byte, Status) {
	if n == 0 {
		return []byte{}, StatusOK
	}
	view, err := r.mem.Read(uint32(addr), n)
	if err != nil {
		return nil, StatusFault
	}
	return bytes.Clone(view), StatusOK
}

// HashFirst starts an iteration over ht. The index is allocated in p and
// Null is returned when the table is empty.
func (r *Runtime) HashFirst(p *pool.Pool, ht nativecoll.Ptr) (nativecoll.Ptr, Status) {
	if _, st := r.readTable(ht); st != StatusOK {
		return nativecoll.Null, st
	}
	hi, err := p.Calloc(HashIndexSize, 0)
	if err != nil {
		return nativecoll.Null, StatusOf(err)
	}
	if st := store32(r.mem, hi+hiTable, uint32(ht)); st != StatusOK {
		return nativecoll.Null, st
	}
	return r.HashNext(hi)
}

// HashNext advances hi. It returns hi, or Null once every entry has been
// visited.
func (r *Runtime) HashNext(hi nativecoll.Ptr) (nativecoll.Ptr, Status) {
	var f [4]uint32
	if st := readFields(r.mem, hi, f[:]); st != StatusOK {
		return nativecoll.Null, st
	}
	t, st := r.readTable(nativecoll.Ptr(f[hiTable/4]))
	if st != StatusOK {
		return nativecoll.Null, st
	}
	this, index := f[hiNext/4], f[hiIndex/4]
	for this == 0 {
		if index > t.max {
			return nativecoll.Null, writeFields(r.mem, hi+hiThis, 0, 0, index)
		}
		if this, st = load32(r.mem, t.buckets+nativecoll.Ptr(index*4)); st != StatusOK {
			return nativecoll.Null, st
		}
		index++
	}
	next, st := load32(r.mem, nativecoll.Ptr(this)+heNext)
	if st != StatusOK {
		return nativecoll.Null, st
	}
	if st := writeFields(r.mem, hi+hiThis, this, next, index); st != StatusOK {
		return nativecoll.Null, st
	}
	return hi, StatusOK
}

// HashThis returns a copy of the current key and its value.
func (r *Runtime) HashThis(hi nativecoll.Ptr) ([]byte, nativecoll.Ptr, Status) {
	this, st := load32(r.mem, hi+hiThis)
	if st != StatusOK {
		return nil, nativecoll.Null, st
	}
	if this == 0 {
		return nil, nativecoll.Null, StatusBadArgument
	}
	e, st := r.readEntry(nativecoll.Ptr(this))
	if st != StatusOK {
		return nil, nativecoll.Null, st
	}
	key, st := r.readBytes(e.key, e.klen)
	if st != StatusOK {
		return nil, nativecoll.Null, st
	}
	return key, e.val, StatusOK
}
