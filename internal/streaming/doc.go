/*
Package streaming serves media files over HTTP with single byte-range support
and timeout protection against slow or departed clients.

# Ranges

ParseRange accepts exactly one form, bytes=<start>-[<end>]. A missing end
selects the rest of the file and an end past the file is clamped to its last
byte. Everything else is rejected with ErrRangeNotSatisfiable: suffix ranges
(bytes=-N), multiple ranges, other units, non-numeric offsets, start after end
and a start at or beyond the file size.

# Responses

Open prepares a Response for a resolved path:

	resp, err := streaming.Open(path, r.Header.Get("Range"))
	var rangeErr *streaming.RangeError
	switch {
	case errors.As(err, &rangeErr):
		w.Header().Set("Content-Range", streaming.UnsatisfiedRange(rangeErr.Size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	case err != nil:
		// filesystem.ErrSourceNotFound
		return
	}
	_, err = resp.Send(r.Context(), w)

Without a Range header the response is 200 with the full Content-Length.
With one it is 206 with Content-Range: bytes s-e/S. Both carry
Accept-Ranges: bytes and a Content-Type derived from the extension.

# Timeout protection

Send copies through a TimeoutWriter in fixed-size chunks, flushing after each
one. A chunk that cannot be written within WriteTimeout, or a gap longer than
IdleTimeout between writes, ends the stream with ErrWriteTimeout. A canceled
request context ends it with ErrClientGone. In every case the file handle is
closed before Send returns, and the whole file is never held in memory.
*/
package streaming
