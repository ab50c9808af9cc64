package viewpoint

import "fmt"

const (
	// textJS is a javascript snippet that returns the innerText of the specified
	// visible (ie, offsetWidth || offsetHeight || getClientRects().length ) element.
	textJS = `function text() {
		if (this.offsetWidth || this.offsetHeight || this.getClientRects().length) {
			return this.innerText;
		}
		return '';
	}`

	// textContentJS is a javascript snippet that returns the textContent of the
	// specified element.
	textContentJS = `function textContent() {
		return this.textContent;
	}`

	// blurJS is a javascript snippet that blurs the specified element.
	blurJS = `function blur() {
		this.blur();
		return true;
	}`

	// submitJS is a javascript snippet that will call the containing form's
	// submit function, returning true or false if the call was successful.
	submitJS = `function submit() {
		if (this.nodeName === 'FORM') {
			HTMLFormElement.prototype.submit.call(this);
			return true;
		} else if (this.form !== null) {
			HTMLFormElement.prototype.submit.call(this.form);
			return true;
		}
		return false;
	}`

	// resetJS is a javascript snippet that will call the containing form's
	// reset function, returning true or false if the call was successful.
	resetJS = `function reset() {
		if (this.nodeName === 'FORM') {
			HTMLFormElement.prototype.reset.call(this);
			return true;
		} else if (this.form !== null) {
			HTMLFormElement.prototype.reset.call(this.form);
			return true;
		}
		return false;
	}`

	// attributeJS is a javascript snippet that returns the attribute of a specified
	// node.
	attributeJS = `function attribute(n) {
		return this[n];
	}`

	// setAttributeJS is a javascript snippet that sets the value of the specified
	// node, and returns the value.
	setAttributeJS = `function setAttribute(n, v) {
		this[n] = v;
		if (n === 'value') {
			this.dispatchEvent(new Event('input', { bubbles: true }));
			this.dispatchEvent(new Event('change', { bubbles: true }));
		}
		return this[n];
	}`

	// visibleJS is a javascript snippet that returns true or false depending on if
	// the specified node's offsetWidth, offsetHeight or getClientRects().length is
	// not null.
	visibleJS = `function visible() {
		return Boolean( this.offsetWidth || this.offsetHeight || this.getClientRects().length );
	}`

	// isCheckedJS reports whether a checkbox/radio/ARIA-checkable element is
	// currently checked.
	isCheckedJS = `function isChecked() {
		return this.checked === true || this.getAttribute('aria-checked') === 'true';
	}`

	// isEditableJS reports whether an element accepts direct text input:
	// not disabled, and either not read-only (form controls) or
	// contenteditable (everything else).
	isEditableJS = `function isEditable() {
		if (this.disabled) return false;
		if ('readOnly' in this) return !this.readOnly;
		return this.isContentEditable === true;
	}`

	// highlightJS draws a temporary outline around the element, the same
	// debugging aid Playwright's locator.highlight() gives a human watching
	// the browser; it has no CDP Overlay-domain equivalent wired up here, so
	// it is a plain style mutation instead.
	highlightJS = `function highlight() {
		const prev = this.style.outline;
		this.style.outline = '2px solid #ff0000';
		setTimeout(() => { this.style.outline = prev; }, 2000);
		return true;
	}`

	// getClientRectJS is a javascript snippet that returns the information about the
	// size of the specified node and its position relative to its owner document.
	getClientRectJS = `function getClientRect() {
		const e = this.getBoundingClientRect(),
		t = this.ownerDocument.documentElement.getBoundingClientRect();
		return {
			x: e.left - t.left,
			y: e.top - t.top,
			width: e.width,
			height: e.height,
		};
	}`

	// waitForPredicatePageFunction is a javascript snippet that runs the polling in the
	// browser. It's copied from puppeteer. See
	// https://github.com/puppeteer/puppeteer/blob/669f04a7a6e96cc8353a8cb152898edbc25e7c15/src/common/DOMWorld.ts#L870-L944
	// It's modified to make mutation polling respect timeout even when there is not DOM mutation.
	waitForPredicatePageFunction = `async function waitForPredicatePageFunction(predicateBody, polling, timeout, ...args) {
		const predicate = new Function('...args', predicateBody);
		let timedOut = false;
		if (timeout)
			setTimeout(() => (timedOut = true), timeout);
		if (polling === 'raf')
			return await pollRaf();
		if (polling === 'mutation')
			return await pollMutation();
		if (typeof polling === 'number')
			return await pollInterval(polling);
		/**
		 * @returns {!Promise<*>}
		 */
		async function pollMutation() {
			const success = await predicate(...args);
			if (success)
				return Promise.resolve(success);
			let fulfill;
			const result = new Promise((x) => (fulfill = x));
			const observer = new MutationObserver(async () => {
				if (timedOut) {
					observer.disconnect();
					fulfill();
				}
				const success = await predicate(...args);
				if (success) {
					observer.disconnect();
					fulfill(success);
				}
			});
			observer.observe(document, {
				childList: true,
				subtree: true,
				attributes: true,
			});
			if (timeout)
				setTimeout(() => {
					observer.disconnect();
					fulfill();
				}, timeout);
			return result;
		}
		async function pollRaf() {
			let fulfill;
			const result = new Promise((x) => (fulfill = x));
			await onRaf();
			return result;
			async function onRaf() {
				if (timedOut) {
					fulfill();
					return;
				}
				const success = await predicate(...args);
				if (success)
					fulfill(success);
				else
					requestAnimationFrame(onRaf);
			}
		}
		async function pollInterval(pollInterval) {
			let fulfill;
			const result = new Promise((x) => (fulfill = x));
			await onTimeout();
			return result;
			async function onTimeout() {
				if (timedOut) {
					fulfill();
					return;
				}
				const success = await predicate(...args);
				if (success)
					fulfill(success);
				else
					setTimeout(onTimeout, pollInterval);
			}
		}
	}`
)

const (
	// isolatedWorldBootstrapJS is installed via
	// Page.addScriptToEvaluateOnNewDocument so every frame gets a named
	// isolated world (see utilityWorldName in session.go) before any page
	// script runs. It does nothing itself; for the document already loaded
	// when a page attaches, Page.initialize creates the world in the main
	// frame with Page.createIsolatedWorld once it knows the frame tree.
	isolatedWorldBootstrapJS = `function(){}`

	// accessibleNameJS computes an element's accessible name using the
	// subset of the W3C accname algorithm covering aria-label,
	// aria-labelledby, <label>, and alt/title/placeholder fallbacks,
	// the same subset Playwright's own injected accessible-name
	// computation implements for ARIA snapshots and name-based selectors
	// (Role/Label/AltText/Title, see queryEngineTemplate below).
	accessibleNameJS = `function accessibleName() {
		function labelFromLabelledby(el) {
			const ids = (el.getAttribute('aria-labelledby') || '').trim().split(/\s+/).filter(Boolean);
			if (!ids.length) return '';
			return ids.map((id) => {
				const t = document.getElementById(id);
				return t ? (t.innerText || t.textContent || '').trim() : '';
			}).join(' ').trim();
		}
		const byLabelledby = labelFromLabelledby(this);
		if (byLabelledby) return byLabelledby;

		const ariaLabel = (this.getAttribute('aria-label') || '').trim();
		if (ariaLabel) return ariaLabel;

		if (this.labels && this.labels.length) {
			return Array.from(this.labels).map((l) => (l.innerText || l.textContent || '').trim()).join(' ').trim();
		}

		if (this.tagName === 'IMG' || this.tagName === 'INPUT') {
			const alt = (this.getAttribute('alt') || '').trim();
			if (alt) return alt;
		}
		const placeholder = (this.getAttribute('placeholder') || '').trim();
		if (placeholder) return placeholder;

		const title = (this.getAttribute('title') || '').trim();
		if (title) return title;

		return (this.innerText || this.textContent || '').trim();
	}`

	// implicitRoleJS computes an element's ARIA role: its explicit `role`
	// attribute if set, else the implicit role HTML mapping assigns its
	// tag (and, for <input>, its type). Shared between ariaSnapshotTemplate
	// (the accessibility-tree walk) and queryEngineTemplate's Role selector
	// matching, so the two paths can never disagree about an element's role.
	implicitRoleJS = `function implicitRole(el) {
		const explicit = el.getAttribute('role');
		if (explicit) return explicit;
		const tag = el.tagName.toLowerCase();
		if (tag === 'input') {
			const type = (el.getAttribute('type') || 'text').toLowerCase();
			const byType = {
				checkbox: 'checkbox', radio: 'radio', button: 'button', submit: 'button',
				reset: 'button', image: 'button', range: 'slider', search: 'searchbox',
			};
			return byType[type] || 'textbox';
		}
		const implicit = {
			a: 'link', button: 'button', h1: 'heading', h2: 'heading', h3: 'heading',
			h4: 'heading', h5: 'heading', h6: 'heading', img: 'img', textarea: 'textbox',
			li: 'listitem', nav: 'navigation', ol: 'list', ul: 'list', option: 'option',
			select: 'combobox', table: 'table', tr: 'row', dialog: 'dialog',
		};
		return implicit[tag] || 'generic';
	}`

	// ariaSnapshotTemplate walks the tree rooted at this element, building
	// the {role, name, children} tree aria.go decodes into an AriaNode,
	// skipping elements that are CSS-hidden or aria-hidden. ariaSnapshotJS
	// (below) fills the two %s placeholders with accessibleNameJS and implicitRoleJS so
	// the snapshot uses the same role/accessible-name computation
	// locator.go's name-based selectors do.
	ariaSnapshotTemplate = `function ariaSnapshot(epoch) {
		const accessibleName = %s;
		const implicitRole = %s;
		function hidden(el) {
			if (el.getAttribute('aria-hidden') === 'true') return true;
			const style = getComputedStyle(el);
			return style.display === 'none' || style.visibility === 'hidden';
		}
		let nextIndex = 0;
		function walk(el) {
			if (hidden(el)) return null;
			const children = [];
			for (const child of el.children) {
				const c = walk(child);
				if (c) children.push(c);
			}
			const index = nextIndex++;
			el.setAttribute('data-vp-ref', epoch + '-' + index);
			return { role: implicitRole(el), name: accessibleName.call(el), ref: index, children };
		}
		return walk(this);
	}`

	// queryEngineTemplate evaluates one Selector segment against a root
	// node (document or an element, for descendant chaining) and returns
	// the matching elements, mirroring the query plan selector.go builds
	// up from a parsed Selector. The two %s placeholders are
	// accessibleNameJS and implicitRoleJS (see queryEngineJS below).
	queryEngineTemplate = `function queryViewpointSelector(root, seg) {
		const accessibleName = %s;
		const implicitRole = %s;
		const scope = root || document;

		function matchesRole(el, role, options) {
			if (implicitRole(el) !== role) return false;
			options = options || {};
			if (options.name) {
				const name = accessibleName.call(el);
				if (options.exact) {
					if (name !== options.name) return false;
				} else if (!name.toLowerCase().includes(options.name.toLowerCase())) {
					return false;
				}
			}
			if (options.checked !== undefined) {
				const checked = el.checked === true || el.getAttribute('aria-checked') === 'true';
				if (checked !== options.checked) return false;
			}
			if (options.selected !== undefined) {
				const selected = el.selected === true || el.getAttribute('aria-selected') === 'true';
				if (selected !== options.selected) return false;
			}
			if (options.expanded !== undefined) {
				if ((el.getAttribute('aria-expanded') === 'true') !== options.expanded) return false;
			}
			if (options.pressed !== undefined) {
				if ((el.getAttribute('aria-pressed') === 'true') !== options.pressed) return false;
			}
			if (options.disabled !== undefined) {
				const disabled = el.disabled === true || el.getAttribute('aria-disabled') === 'true';
				if (disabled !== options.disabled) return false;
			}
			if (options.level) {
				const m = /^h([1-6])$/.exec(el.tagName.toLowerCase());
				const level = m ? parseInt(m[1], 10) : parseInt(el.getAttribute('aria-level') || '0', 10);
				if (level !== options.level) return false;
			}
			if (!options.includeHidden) {
				const style = getComputedStyle(el);
				if (style.display === 'none' || style.visibility === 'hidden' || el.getAttribute('aria-hidden') === 'true') return false;
			}
			return true;
		}

		function matchesByString(el, attr, body, exact) {
			let value = '';
			switch (attr) {
				case 'label': value = accessibleName.call(el); break;
				case 'placeholder': value = el.getAttribute('placeholder') || ''; break;
				case 'alt': value = el.getAttribute('alt') || ''; break;
				case 'title': value = el.getAttribute('title') || ''; break;
			}
			value = value.trim();
			return exact ? value === body : value.toLowerCase().includes(body.toLowerCase());
		}

		switch (seg.engine) {
			case 'css':
				return Array.from(scope.querySelectorAll(seg.body));
			case 'text': {
				const needle = seg.body.toLowerCase();
				return Array.from(scope.querySelectorAll('*')).filter((el) => {
					const txt = (el.innerText || el.textContent || '').trim();
					return seg.exact ? txt === seg.body : txt.toLowerCase().includes(needle);
				});
			}
			case 'xpath': {
				const result = document.evaluate(seg.body, scope, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
				const out = [];
				for (let i = 0; i < result.snapshotLength; i++) out.push(result.snapshotItem(i));
				return out;
			}
			case 'role':
				return Array.from(scope.querySelectorAll('*')).filter((el) => matchesRole(el, seg.role, seg.options));
			case 'testid': {
				const attr = (seg.options && seg.options.attr) || 'data-testid';
				return Array.from(scope.querySelectorAll('[' + attr + '="' + seg.body.replace(/(["\\])/g, '\\$1') + '"]'));
			}
			case 'label':
				return Array.from(scope.querySelectorAll('*')).filter((el) => matchesByString(el, 'label', seg.body, seg.exact));
			case 'placeholder':
				return Array.from(scope.querySelectorAll('*')).filter((el) => matchesByString(el, 'placeholder', seg.body, seg.exact));
			case 'alt':
				return Array.from(scope.querySelectorAll('*')).filter((el) => matchesByString(el, 'alt', seg.body, seg.exact));
			case 'title':
				return Array.from(scope.querySelectorAll('*')).filter((el) => matchesByString(el, 'title', seg.body, seg.exact));
			default:
				throw new Error('unknown selector engine ' + seg.engine);
		}
	}`

	// resolveOpTemplate evaluates a locatorOp query-plan tree (locator.go)
	// against the document, implementing chained selectors plus the
	// And/Or/Filter/First/Last combinators in one round trip: composing
	// these client-side avoids comparing RemoteObjectIDs for identity
	// across separate CallFunctionOn calls, which CDP gives no guarantee
	// stay stable for the same underlying node. The one %s placeholder is
	// queryEngineJS.
	resolveOpTemplate = `function(op) {
		const queryViewpointSelector = %s;

		function resolveChain(roots, chain) {
			for (const seg of (chain || [])) {
				if (seg.engine === 'nth') {
					const idx = parseInt(seg.body, 10);
					roots = roots[idx] !== undefined ? [roots[idx]] : [];
					continue;
				}
				let next = [];
				for (const r of roots) next = next.concat(queryViewpointSelector(r, seg));
				roots = next;
			}
			return roots;
		}

		function dedupOrdered(arr) {
			const out = [];
			for (const el of arr) if (!out.includes(el)) out.push(el);
			out.sort((a, b) => {
				const pos = a.compareDocumentPosition(b);
				if (pos & Node.DOCUMENT_POSITION_FOLLOWING) return -1;
				if (pos & Node.DOCUMENT_POSITION_PRECEDING) return 1;
				return 0;
			});
			return out;
		}

		function evalOp(root, o) {
			switch (o.kind) {
				case 'chain': {
					const roots = o.base ? evalOp(root, o.base) : [root];
					return resolveChain(roots, o.chain);
				}
				case 'and': {
					const a = evalOp(root, o.left), b = evalOp(root, o.right);
					return a.filter((el) => b.includes(el));
				}
				case 'or': {
					const a = evalOp(root, o.left), b = evalOp(root, o.right);
					return dedupOrdered(a.concat(b));
				}
				case 'filter': {
					let base = evalOp(root, o.inner);
					if (o.has) base = base.filter((el) => evalOp(el, o.has).length > 0);
					if (o.hasNot) base = base.filter((el) => evalOp(el, o.hasNot).length === 0);
					if (o.hasText) {
						const needle = o.hasText.toLowerCase();
						base = base.filter((el) => (el.innerText || el.textContent || '').toLowerCase().includes(needle));
					}
					if (o.hasNotText) {
						const needle = o.hasNotText.toLowerCase();
						base = base.filter((el) => !(el.innerText || el.textContent || '').toLowerCase().includes(needle));
					}
					return base;
				}
				case 'first': {
					const base = evalOp(root, o.inner);
					return base.length ? [base[0]] : [];
				}
				case 'last': {
					const base = evalOp(root, o.inner);
					return base.length ? [base[base.length - 1]] : [];
				}
				default:
					throw new Error('unknown op kind ' + o.kind);
			}
		}

		return evalOp(document.documentElement, op);
	}`

	// actionabilityJS computes the actionability checks a Locator action
	// (Click, Fill, Check, ...) must pass before acting: visible, not
	// covered by another element at its center point, and (for form
	// controls) enabled. Modeled on Playwright's injected element-state
	// helpers, condensed to the subset actionability.go needs.
	actionabilityJS = `function actionability() {
		const r = this.getBoundingClientRect();
		const visible = Boolean(this.offsetWidth || this.offsetHeight || this.getClientRects().length)
			&& getComputedStyle(this).visibility !== 'hidden';
		const disabled = 'disabled' in this && this.disabled === true;
		if (!visible) return { visible: false, enabled: !disabled };

		const cx = r.left + r.width / 2;
		const cy = r.top + r.height / 2;
		const atPoint = document.elementFromPoint(cx, cy);
		const covered = atPoint !== null && atPoint !== this && !this.contains(atPoint);

		return {
			visible: true,
			rect: { x: r.x, y: r.y, width: r.width, height: r.height },
			covered,
			coveredBy: covered ? (atPoint.tagName || '').toLowerCase() : '',
			enabled: !disabled,
		};
	}`
)

// queryEngineJS is queryEngineTemplate with its accessible-name/role
// helpers filled in; resolveOpTemplate (via resolveOpJS) embeds it verbatim so
// every selector segment in a query plan shares the one implementation.
var queryEngineJS = fmt.Sprintf(queryEngineTemplate, accessibleNameJS, implicitRoleJS)

// ariaSnapshotJS is ariaSnapshotTemplate with its accessible-name/role
// helpers filled in (aria.go).
var ariaSnapshotJS = fmt.Sprintf(ariaSnapshotTemplate, accessibleNameJS, implicitRoleJS)

// resolveOpJS is resolveOpTemplate with queryEngineJS embedded; this is
// the function locator.go actually sends through Runtime.callFunctionOn.
var resolveOpJS = fmt.Sprintf(resolveOpTemplate, queryEngineJS)
