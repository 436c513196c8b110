package browser

// Page-side helpers shared by the form and dropdown scripts. They are
// inlined into every evaluated function so each call is self-contained.
const jsPrelude = `
const visible = (e) => !!e && e.offsetHeight > 0;
const upper = (s) => (s || "").toUpperCase();
const panelSelectors = [
  ".dropdown-menu.show",
  ".show[class*=\"dropdown\"]",
  "[role=\"listbox\"]",
  ".ng-dropdown-panel",
  ".cdk-overlay-pane",
  ".select2-container--open",
  ".dropdown-menu[style*=\"display: block\"]",
];
const findPanel = () => {
  for (const s of panelSelectors) {
    const p = document.querySelector(s);
    if (visible(p)) return p;
  }
  return null;
};
const findRegion = (panel) => {
  const inner = panel && panel.querySelector(".virtualized");
  if (inner) return inner;
  return Array.from(document.querySelectorAll(".virtualized")).find(visible) || null;
};
const findToggle = (label, selector) => {
  let el = null;
  if (label) {
    const l = Array.from(document.querySelectorAll("label")).find((x) => upper(x.textContent).includes(upper(label)));
    const g = l && l.closest("div.form-group");
    el = g && g.querySelector("button.dropdown-toggle, button.btn.dropdown-toggle");
  }
  if (!el && selector) el = document.querySelector(selector);
  return el || null;
};
const items = () => {
  const panel = findPanel();
  const root = findRegion(panel) || panel || document;
  return Array.from(root.querySelectorAll("div.dropdown-item")).filter((i) => visible(i) && i.textContent.trim() !== "");
};
const fire = (el, type) => el.dispatchEvent(new Event(type, { bubbles: true }));
`

func fn(params, body string) string {
	return "function(" + params + ") {" + jsPrelude + body + "}"
}

var (
	jsHasControl = fn("label, selector", `return findToggle(label, selector) !== null;`)

	jsClickControl = fn("label, selector", `
const el = findToggle(label, selector);
if (!el) return false;
el.click();
return true;`)

	jsFocusControl = fn("label, selector", `
const el = findToggle(label, selector);
if (!el) return false;
el.focus();
return true;`)

	jsPanelOpen = fn("", `return findPanel() !== null || Array.from(document.querySelectorAll(".virtualized")).some(visible);`)

	jsFocusSearch = fn("scope", `
const panel = findPanel();
let input = null;
if (scope === "list_region") {
  const region = findRegion(panel);
  if (region) {
    input = Array.from(region.querySelectorAll("input[type=\"text\"], input[placeholder*=\"Search\"], input.form-control")).find(visible);
  }
} else if (scope === "panel") {
  if (panel) {
    input = Array.from(panel.querySelectorAll("input.form-control[placeholder=\"Search...\"], input[placeholder*=\"Search\"]")).find(visible);
  }
} else {
  input = Array.from(document.querySelectorAll("input[type=\"text\"], input.form-control")).find((e) => visible(e) && (e.placeholder || "").includes("Search"));
}
if (!input) return false;
input.focus();
input.value = "";
fire(input, "input");
return true;`)

	jsCandidates = fn("", `return items().map((i) => i.textContent.trim());`)

	jsSelectItem = fn("index", `
const it = items()[index];
if (!it) return false;
it.scrollIntoView({ block: "center" });
it.click();
return true;`)

	jsExists = fn("sel", `return document.querySelector(sel) !== null;`)

	jsClearText = fn("sel", `
const el = document.querySelector(sel);
if (!el) return false;
el.scrollIntoView({ block: "center" });
el.focus();
el.value = "";
fire(el, "input");
return true;`)

	jsCommitText = fn("sel", `
const el = document.querySelector(sel);
if (!el) return false;
fire(el, "change");
el.blur();
return true;`)

	jsSelectOptions = fn("sel", `
const el = document.querySelector(sel);
if (!el || !el.options) return { found: false, options: [] };
return { found: true, options: Array.from(el.options).map((o) => ({ value: o.value, text: o.text.trim() })) };`)

	jsSetSelect = fn("sel, value", `
const el = document.querySelector(sel);
if (!el) return false;
el.value = value;
fire(el, "input");
fire(el, "change");
return true;`)

	jsClickButton = fn("text, modal", `
const btn = Array.from(document.querySelectorAll("button")).find((b) => modal
  ? b.textContent.trim() === text && b.closest(".modal-content") && visible(b)
  : upper(b.textContent).includes(upper(text)));
if (!btn) return false;
btn.click();
return true;`)

	jsClickSelector = fn("sel", `
const el = document.querySelector(sel);
if (!el) return false;
el.click();
return true;`)

	jsEmailCheck = fn("", `
const modal = Array.from(document.querySelectorAll(".modal-content")).find(visible);
if (modal) {
  const body = modal.querySelector(".modal-body") || modal;
  return body.innerText.trim();
}
const hint = Array.from(document.querySelectorAll(".invalid-feedback, .text-danger, .alert")).find(visible);
return hint ? hint.innerText.trim() : "";`)

	jsDismissStaleModal = fn("", `
const modal = document.querySelector("#myModal");
if (!visible(modal)) return false;
const close = modal.querySelector("button.close, .close, [data-dismiss=\"modal\"]");
if (close) close.click();
return true;`)
)
