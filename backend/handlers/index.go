// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import "net/http"

// The real web client lives in its own repo; this page just points the
// curious at the API and the chat CLI.
const indexPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>fadechat</title></head>
<body>
<h1>fadechat</h1>
<p>Ephemeral room chat. Rooms live only while someone is in them;
messages fade after the retention window.</p>
<p>API: <code>/api/room/{roomId}/{messages|send|join|destroy}</code>.
Terminal client: <code>go run ./client/cmd/chat</code>.</p>
</body>
</html>
`

func Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}
