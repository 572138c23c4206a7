package timeutil

import "time"

// NowUnix is the single clock used for row timestamps; everything stored in
// the database is unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}
