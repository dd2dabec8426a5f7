package patcher

import (
	"github.com/roach88/coedit/internal/mirror"
)

// Apply merges one op recorded by another replica into doc. Ops merge by
// element id, so replicas that apply each other's ops converge whatever
// order concurrent ops arrive in, as long as each op arrives after the ops
// it builds on. Replaying an update log in order onto an empty doc rebuilds
// the mirror that produced it. Ops doc already has are skipped.
func Apply(doc *mirror.Doc, op mirror.Op) error {
	_, err := doc.Integrate(op)
	return err
}

// ApplyUpdate applies every op of u as one "remote" transaction and
// returns how many were new to doc.
func ApplyUpdate(doc *mirror.Doc, u mirror.Update) (int, error) {
	applied := 0
	var err error
	doc.Transact("remote", func() {
		for _, op := range u.Ops {
			var ok bool
			if ok, err = doc.Integrate(op); err != nil {
				return
			}
			if ok {
				applied++
			}
		}
	})
	return applied, err
}
