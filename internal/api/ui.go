package api

import (
	"net/http"
)

const consoleHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Job Engine - Console</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body { font-family: monospace; background: #1a1a2e; color: #eee; height: 100vh; display: flex; flex-direction: column; }
        header { background: #16213e; padding: 12px 20px; border-bottom: 1px solid #0f3460; display: flex; justify-content: space-between; align-items: center; }
        header h1 { font-size: 16px; font-weight: normal; }
        #status { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #status.connected { background: #1b4332; color: #95d5b2; }
        #status.disconnected { background: #7f1d1d; color: #fca5a5; }
        main { flex: 1; display: flex; overflow: hidden; }
        section { flex: 1; overflow-y: auto; padding: 10px; }
        h2 { font-size: 13px; color: #94a3b8; margin-bottom: 8px; }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        td, th { padding: 6px 8px; border-bottom: 1px solid #0f3460; text-align: left; }
        button { background: #0f3460; color: #eee; border: none; padding: 3px 8px; border-radius: 3px; cursor: pointer; font-family: monospace; }
        .event { padding: 6px 10px; margin-bottom: 4px; background: #16213e; border-left: 3px solid #0f3460; font-size: 12px; }
        .event.warn { border-left-color: #f59e0b; }
        .event.error { border-left-color: #ef4444; }
        #startForm { margin-bottom: 10px; }
        input { background: #16213e; color: #eee; border: 1px solid #0f3460; padding: 3px 6px; font-family: monospace; }
    </style>
</head>
<body>
    <header>
        <h1>Job Engine</h1>
        <span id="status" class="disconnected">disconnected</span>
    </header>
    <main>
        <section>
            <h2>Jobs</h2>
            <form id="startForm" onsubmit="startJob(); return false;">
                <input id="jobName" placeholder="job name">
                <button type="submit">start</button>
            </form>
            <table>
                <thead><tr><th>entity</th><th>job</th><th>task</th><th>status</th><th></th></tr></thead>
                <tbody id="jobs"></tbody>
            </table>
        </section>
        <section>
            <h2>Events</h2>
            <div id="events"></div>
        </section>
    </main>
    <script>
        const statusEl = document.getElementById('status');
        const jobsEl = document.getElementById('jobs');
        const eventsEl = document.getElementById('events');

        function post(path, body) {
            return fetch(path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body || {})
            }).then(function(res) { return res.json(); });
        }

        function act(entity, action) {
            post('/jobs/' + entity + '/' + action).then(refresh);
        }

        function startJob() {
            const name = document.getElementById('jobName').value.trim();
            if (name) post('/jobs/start', { job: name }).then(refresh);
        }

        function refresh() {
            fetch('/jobs').then(function(res) { return res.json(); }).then(function(data) {
                jobsEl.innerHTML = '';
                (data.jobs || []).forEach(function(j) {
                    const tr = document.createElement('tr');
                    const actions = ['advance', 'pause', 'unpause', 'cancel'].map(function(a) {
                        return '<button onclick="act(' + j.entity + ', \'' + a + '\')">' + a + '</button>';
                    }).join(' ');
                    tr.innerHTML = '<td>' + j.entity + '</td><td>' + j.label + '</td><td>' +
                        j.current + ' ' + (j.task || '') + '</td><td>' + j.status + '</td><td>' + actions + '</td>';
                    jobsEl.appendChild(tr);
                });
            });
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
            const ws = new WebSocket(proto + '//' + location.host + '/ws/events');
            ws.onopen = function() { statusEl.className = 'connected'; statusEl.textContent = 'connected'; };
            ws.onclose = function() {
                statusEl.className = 'disconnected';
                statusEl.textContent = 'disconnected';
                setTimeout(connect, 2000);
            };
            ws.onmessage = function(msg) {
                const e = JSON.parse(msg.data);
                const div = document.createElement('div');
                div.className = 'event ' + e.level;
                div.textContent = e.ts.substring(11, 23) + ' ' + e.event + ' ' + JSON.stringify(e.fields || {});
                eventsEl.prepend(div);
                while (eventsEl.childNodes.length > 200) eventsEl.removeChild(eventsEl.lastChild);
            };
        }

        connect();
        refresh();
        setInterval(refresh, 1000);
    </script>
</body>
</html>`

// uiHandler serves the operator console.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(consoleHTML))
}
