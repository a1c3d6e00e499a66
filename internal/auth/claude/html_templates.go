package claude

import (
	"html"
	"strings"
)

// pageStyle is shared by the callback result pages.
const pageStyle = `<style>
        * { box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: #f5f4ef;
            padding: 1rem;
        }
        .container {
            text-align: center;
            background: white;
            padding: 2.5rem;
            border-radius: 12px;
            box-shadow: 0 10px 25px rgba(0,0,0,0.1);
            max-width: 480px;
            width: 100%;
        }
        .icon {
            width: 64px;
            height: 64px;
            margin: 0 auto 1.5rem;
            border-radius: 50%;
            display: flex;
            align-items: center;
            justify-content: center;
            color: white;
            font-size: 2rem;
            font-weight: bold;
        }
        .icon.success { background: #10b981; }
        .icon.failure { background: #dc2626; }
        h1 { color: #1f2937; margin-bottom: 1rem; font-size: 1.75rem; }
        .message { color: #6b7280; margin-bottom: 1.5rem; line-height: 1.5; }
        .detail { font-family: monospace; color: #991b1b; word-break: break-all; }
        .button {
            display: inline-block;
            padding: 0.75rem 1.5rem;
            border-radius: 8px;
            text-decoration: none;
            background: #d97757;
            color: white;
            border: none;
            cursor: pointer;
        }
        .countdown { color: #9ca3af; font-size: 0.875rem; margin-top: 1rem; }
    </style>`

// LoginSuccessHtml is displayed after the callback delivered a usable authorization code.
// The window closes itself after a short countdown.
const LoginSuccessHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Successful - Claude</title>
    ` + pageStyle + `
</head>
<body>
    <div class="container">
        <div class="icon success">&#10003;</div>
        <h1>Authentication Successful!</h1>
        <p class="message">You have successfully authenticated with Claude. You can close this window and return to your terminal.</p>
        <button class="button" onclick="window.close()">Close Window</button>
        <div class="countdown">This window will close automatically in <span id="countdown">10</span> seconds</div>
    </div>
    <script>
        let remaining = 10;
        const countdownElement = document.getElementById('countdown');
        const timer = setInterval(() => {
            remaining--;
            countdownElement.textContent = remaining;
            if (remaining <= 0) {
                clearInterval(timer);
                window.close();
            }
        }, 1000);
    </script>
</body>
</html>`

// LoginFailureHtml is displayed when the callback is rejected. {{ERROR}} is replaced
// with the escaped reason.
const LoginFailureHtml = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Authentication Failed - Claude</title>
    ` + pageStyle + `
</head>
<body>
    <div class="container">
        <div class="icon failure">!</div>
        <h1>Authentication Failed</h1>
        <p class="message">The login could not be completed. Return to your terminal and start again.</p>
        <p class="detail">{{ERROR}}</p>
    </div>
</body>
</html>`

func renderFailurePage(reason string) string {
	return strings.Replace(LoginFailureHtml, "{{ERROR}}", html.EscapeString(reason), 1)
}
