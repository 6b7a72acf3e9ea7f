package server

import "net/http"

// handleIndex serves the single-page upload/ask form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>CaseVise - Legal Assistant</title>
    <style>
        body { font-family: sans-serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; color: #222; }
        h1 { text-align: center; color: #2E86C1; }
        .subtitle { text-align: center; color: gray; }
        textarea, select, input[type=file] { width: 100%; margin: 0.5rem 0; }
        textarea { border-radius: 10px; box-shadow: 0 2px 6px rgba(0,0,0,0.1); min-height: 100px; padding: 0.5rem; }
        button { background: #2E86C1; color: white; border: 0; border-radius: 6px; padding: 0.6rem 1rem; margin: 0.25rem 0; width: 100%; cursor: pointer; }
        .message { border-radius: 8px; padding: 0.75rem; margin: 0.5rem 0; }
        .message.user { background: #eef5fb; }
        .message.assistant { background: #f5f5f5; }
        .error { color: #b00020; }
    </style>
</head>
<body>
    <h1>&#9878; CaseVise - Legal Assistant</h1>
    <p class="subtitle">Upload one or more case documents (FIRs, witness statements, judgments) and ask questions or request summaries.</p>
    <hr>

    <h3>Upload Your Case Files</h3>
    <input type="file" id="files" multiple accept=".pdf,.docx,.xlsx,.ods,.txt">
    <button onclick="upload()">Upload</button>
    <p id="upload-status"></p>

    <h3>Ask Your Question</h3>
    <textarea id="question" placeholder="e.g. What was the main evidence used in the judgment?"></textarea>
    <button onclick="ask()">Ask CaseVise</button>

    <label for="perspective">Choose summary perspective:</label>
    <select id="perspective">
        <option value="student">Student</option>
        <option value="lawyer">Lawyer</option>
        <option value="judge">Judge</option>
    </select>
    <button onclick="summarize()">Generate Summary</button>

    <div id="messages"></div>

    <script>
        let session = "";

        async function upload() {
            const input = document.getElementById('files');
            if (!input.files.length) { setStatus('Please choose at least one file.'); return; }
            const form = new FormData();
            form.append('session', session);
            for (const f of input.files) form.append('files', f);
            const resp = await fetch('/api/upload', { method: 'POST', body: form });
            if (!resp.ok) { setStatus(await resp.text()); return; }
            const data = await resp.json();
            session = data.session;
            setStatus('Uploaded: ' + data.files.join(', '));
        }

        async function ask() {
            const question = document.getElementById('question').value.trim();
            if (!question) return;
            addMessage('user', escapeHtml(question));
            await request('/api/ask', { session: session, question: question });
        }

        async function summarize() {
            const perspective = document.getElementById('perspective').value;
            addMessage('user', 'Generate a ' + perspective + ' summary for all uploaded case files.');
            await request('/api/summarize', { session: session, perspective: perspective });
        }

        async function request(url, body) {
            const resp = await fetch(url, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(body)
            });
            if (!resp.ok) {
                addMessage('assistant', '<span class="error">' + escapeHtml(await resp.text()) + '</span>');
                return;
            }
            const data = await resp.json();
            let html = data.answer_html || escapeHtml(data.answer);
            if (data.audio_url) {
                html += '<audio controls src="' + data.audio_url + '?t=' + Date.now() + '"></audio>';
            }
            addMessage('assistant', html);
        }

        function addMessage(role, html) {
            const messages = document.getElementById('messages');
            messages.innerHTML += '<div class="message ' + role + '">' + html + '</div>';
        }

        function setStatus(text) {
            document.getElementById('upload-status').textContent = text;
        }

        function escapeHtml(text) {
            const div = document.createElement('div');
            div.textContent = text;
            return div.innerHTML;
        }
    </script>
</body>
</html>`
