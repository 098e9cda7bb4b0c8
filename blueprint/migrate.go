package blueprint

import (
	"fmt"
	"time"

	"github.com/debforge/debforge/internal/tmpl"
	"github.com/debforge/debforge/lockfile"
)

// MigrateResult reports what Migrate changed, for the `migrate` subcommand's
// summary output.
type MigrateResult struct {
	BlueprintsChanged []string
	LockEntriesAdded  []string
}

// Migrate rewrites every blueprint's legacy `fetch.sha256` (flat or
// per-architecture) into the current `fetch: {url, targets}` shape, moving
// the hash into lf with a synthetic timestamp. Per-architecture legacy maps
// also seed matrix.architectures when the blueprint does not already declare
// one, since the map's keys are the only record of which architectures were
// ever built.
//
// Migrate mutates c.Blueprints in place and does not itself call c.Save or
// lf.Save; the caller commits both after reviewing the result. When any
// blueprint changed, Migrate also drops the node tree retained by Load, so
// c.Save writes the migrated blueprints; that save keeps the leading
// comment block but not comments inside the blueprint list.
func Migrate(c *Config, lf *lockfile.Lockfile) (*MigrateResult, error) {
	res := &MigrateResult{}
	now := time.Now().UTC()
	env := tmpl.New(nil)

	for i := range c.Blueprints {
		bp := &c.Blueprints[i]
		if bp.Fetch == nil {
			continue
		}
		if bp.Fetch.LegacySHA256 == "" && len(bp.Fetch.LegacySHA256PerArch) == 0 {
			continue
		}

		changed := false

		if bp.Fetch.LegacySHA256PerArch != nil {
			if bp.Matrix == nil {
				bp.Matrix = &Matrix{}
			}
			if len(bp.Matrix.Architectures) == 0 {
				archs := make([]string, 0, len(bp.Fetch.LegacySHA256PerArch))
				for a := range bp.Fetch.LegacySHA256PerArch {
					archs = append(archs, a)
				}
				bp.Matrix.Architectures = archs
			}

			rendered, err := Expand(*bp)
			if err != nil {
				return nil, err
			}
			for _, r := range rendered {
				hash, ok := bp.Fetch.LegacySHA256PerArch[r.Architecture]
				if !ok {
					continue
				}
				url, err := RenderURL(r, env)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", bp.Name, err)
				}
				lf.PutAt(url, hash, now)
				res.LockEntriesAdded = append(res.LockEntriesAdded, url)
			}
			bp.Fetch.LegacySHA256PerArch = nil
			changed = true
		} else if bp.Fetch.LegacySHA256 != "" {
			rendered, err := Expand(*bp)
			if err != nil {
				return nil, err
			}
			for _, r := range rendered {
				url, err := RenderURL(r, env)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", bp.Name, err)
				}
				lf.PutAt(url, bp.Fetch.LegacySHA256, now)
				res.LockEntriesAdded = append(res.LockEntriesAdded, url)
			}
			bp.Fetch.LegacySHA256 = ""
			changed = true
		}

		if changed {
			res.BlueprintsChanged = append(res.BlueprintsChanged, bp.Name)
		}
	}

	// The retained node tree still holds the legacy sha256 keys.
	if len(res.BlueprintsChanged) > 0 {
		c.root = nil
	}

	return res, nil
}
