package sortdir

// power is the number of skip-list levels, matching sortdir.c's
// POWER=8, which bounds the leaderboard at 1<<power entries.
const power = 8

const maxLeaders = 1 << power

// leader is one leaderboard slot: the lexically-lowest children seen so
// far in the directory currently being listed, threaded through power
// independent cyclic... actually non-cyclic doubly-linked lists (one per
// level), matching struct leader in sortdir.c's populate().
type leader struct {
	link [power]struct{ l, r *leader }
	cnid int32
	name string
	key  string // the roman31 folding of name, used for every comparison
}

// skiplistInsert splices n immediately to the left of right at level 0,
// and at each level above that so long as hash's bit for that level is
// set, the Go translation of sortdir.c's SKIPLIST_INSERT macro. hash is
// an arbitrary int (the original reuses the cnid) that decides how
// "tall" this particular insertion grows.
func skiplistInsert(right, n *leader, hash int32) {
	d := 0
	for {
		n.link[d].r = right
		n.link[d].l = right.link[d].l
		right.link[d].l.link[d].r = n
		right.link[d].l = n
		d++
		if !(d < power && hash&(1<<uint(d)) != 0) {
			break
		}
	}
}

// skiplistDelete unlinks el from every level it participates in, the
// translation of SKIPLIST_DELETE.
func skiplistDelete(el *leader) {
	for d := 0; d < power; d++ {
		el.link[d].l.link[d].r = el.link[d].r
		el.link[d].r.link[d].l = el.link[d].l
		el.link[d].l, el.link[d].r = nil, nil
	}
}
