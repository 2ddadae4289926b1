package lightcurve

import (
	"github.com/vjranagit/lkext/pkg/naming"
	"github.com/vjranagit/lkext/pkg/types"
)

// ReviseAuthor returns a copy of lc whose AUTHOR tells SPOC and TESS-SPOC
// apart. Both pipelines write AUTHOR=SPOC, so the cadence decides: 2 min or
// 20 s stays SPOC, 30 min, 10 min or 200 s becomes TESS-SPOC. Any other
// cadence is a data-consistency error.
func ReviseAuthor(lc *LightCurve) (*LightCurve, error) {
	out := lc.Copy()
	if out.Author() != naming.AuthorSPOC {
		return out, nil
	}

	timedel, ok := out.TimeDel()
	if !ok {
		return nil, &types.CadenceError{File: out.Filename(), Author: naming.AuthorSPOC, TimeDel: 0}
	}
	minutes := timedel * 24 * 60
	seconds := minutes * 60

	switch {
	case isClose(minutes, 2) || isClose(seconds, 20):
		return out, nil
	case isClose(minutes, 30) || isClose(minutes, 10) || isClose(seconds, 200):
		out.Meta[MetaAuthor] = naming.AuthorTESSSPOC
		return out, nil
	default:
		return nil, &types.CadenceError{File: out.Filename(), Author: naming.AuthorSPOC, TimeDel: timedel}
	}
}
