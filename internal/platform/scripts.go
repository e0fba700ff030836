package platform

// Page-evaluated probe scripts. The UIs these run against are third-party
// single-page apps whose markup shifts between releases, so every probe
// tries several strategies in order and reports structured "unknown" instead
// of throwing. The redundancy is deliberate.

// admissionProbeScript classifies the page into waiting / in_meeting /
// prejoin / rejected / unknown.
const admissionProbeScript = `() => {
	const bodyText = (document.body ? document.body.innerText : '').toLowerCase();

	const waitingMarkers = [
		'asking to join', 'waiting for', 'someone will let you in',
		'waiting room', 'please wait', 'lobby',
	];
	const waiting = waitingMarkers.some(m => bodyText.includes(m));

	const rejectedMarkers = ['passcode required', 'meeting passcode', 'you have been removed', 'meeting has ended'];
	if (rejectedMarkers.some(m => bodyText.includes(m))) {
		return { state: 'rejected' };
	}

	const leaveControl = document.querySelector(
		'[aria-label*="leave" i], [aria-label*="end call" i], [aria-label*="hang up" i], ' +
		'[data-tid="hangup-main-btn"], button[title*="leave" i]'
	);
	const panel = document.querySelector(
		'[aria-label*="participants" i], [aria-label*="chat" i], [data-tid="chat-button"], [data-tid="roster-button"]'
	);
	const nameInput = document.querySelector(
		'input[aria-label*="name" i], input[placeholder*="name" i], input[data-tid="prejoin-display-name"]'
	);

	if ((leaveControl || panel) && !waiting && !nameInput) {
		return { state: 'in_meeting' };
	}
	if (waiting) {
		return { state: 'waiting' };
	}
	if (nameInput && nameInput.offsetParent !== null) {
		return { state: 'prejoin' };
	}
	return { state: 'unknown' };
}`

// avToggleScript finds microphone/camera toggles that are currently ON and
// returns a click point for each. Toggles already muted are left alone.
const avToggleScript = `() => {
	const points = [];
	const buttons = document.querySelectorAll('button, [role="button"]');
	for (const b of buttons) {
		const label = ((b.getAttribute('aria-label') || '') + ' ' + (b.getAttribute('title') || '')).toLowerCase();
		if (!label.includes('microphone') && !label.includes('camera') && !label.includes('video')) continue;
		if (label.includes('unmute') || label.includes('turn on')) continue;

		const pressed = b.getAttribute('aria-pressed');
		const muted = b.getAttribute('data-is-muted');
		const isOn = label.includes('turn off') || label.includes('mute') ||
			pressed === 'true' || muted === 'false';
		if (!isOn) continue;

		const r = b.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) continue;
		points.push({ x: r.x + r.width / 2, y: r.y + r.height / 2 });
	}
	return points;
}`

// captionScript builds the caption harvest script around platform-specific
// DOM strategies. Each strategy yields {speaker, text} candidates; the
// shared tail filters out short strings, UI-control noise, and duplicates
// already present in the harvested list.
func captionScript(strategies string) string {
	return `() => {
	const candidates = [];
	const push = (speaker, text) => {
		text = (text || '').trim();
		if (text.length < 3) return;
		const lower = text.toLowerCase();
		if (lower.includes('mute') || lower.includes('camera')) return;
		if (candidates.some(c => c.text === text)) return;
		candidates.push({ speaker: (speaker || '').trim(), text });
	};
` + strategies + `
	return candidates;
}`
}

var meetCaptionScript = captionScript(`
	for (const region of document.querySelectorAll('div[class*="caption"], [aria-live="polite"]')) {
		const speakerEl = region.querySelector('[class*="speaker"], [class*="name"]');
		const textEl = region.querySelector('[class*="text"], span');
		if (textEl) push(speakerEl ? speakerEl.innerText : '', textEl.innerText);
	}
`)

var zoomCaptionScript = captionScript(`
	for (const el of document.querySelectorAll('[class*="lt-subtitle"], [class*="closed-caption"], [aria-live]')) {
		push('', el.innerText);
	}
`)

var teamsCaptionScript = captionScript(`
	for (const item of document.querySelectorAll('[data-tid="closed-caption-text"], [data-tid*="caption"]')) {
		const row = item.closest('[data-tid="closed-caption-v2-window"], li, div');
		const author = row ? row.querySelector('[data-tid="author"], [class*="author"]') : null;
		push(author ? author.innerText : '', item.innerText);
	}
	for (const region of document.querySelectorAll('[aria-live="assertive"], [aria-live="polite"]')) {
		if (region.querySelector('[data-tid*="caption"]')) continue;
		push('', region.innerText);
	}
`)

var webexCaptionScript = captionScript(`
	for (const row of document.querySelectorAll('[class*="caption-row"], [class*="closedCaption"], [aria-live]')) {
		const speakerEl = row.querySelector('[class*="speaker"], [class*="display-name"]');
		push(speakerEl ? speakerEl.innerText : '', row.innerText);
	}
`)
