package proxy

import (
	"strconv"
	"strings"
)

// EventPrefix tags every message the shim posts to the parent window.
const EventPrefix = "PORTHOLE"

// BuildShim produces the self-contained script block injected into
// every HTML response. The payload is parameterized by exactly two
// strings, the proxy mount prefix and the original target URL; the
// shim recomputes everything else from the live DOM at runtime.
func BuildShim(prefix, target string) string {
	r := strings.NewReplacer(
		"__PROXY_PREFIX__", strconv.Quote(prefix),
		"__TARGET_URL__", strconv.Quote(target),
		"__EVENT_PREFIX__", strconv.Quote(EventPrefix),
	)
	return "<script>" + r.Replace(shimJS) + "</script>"
}

// The shim duplicates the server-side resolve-then-encode logic on the
// client because dynamic calls happen after the initial page load. Its
// hooks, in order: network interception (fetch, XHR, sendBeacon,
// EventSource, WebSocket), host protection (service workers, mic,
// audio gain), live DOM rewriting, the parent notification bridge, and
// the remote auto-scroll control.
const shimJS = `
(function () {
  'use strict';
  if (window.__portholeShim) { return; }
  window.__portholeShim = true;

  var PREFIX = __PROXY_PREFIX__;
  var TARGET = __TARGET_URL__;
  var EVENT_PREFIX = __EVENT_PREFIX__;

  function resolveAgainstTarget(raw) {
    try { return new URL(raw, TARGET).href; } catch (e) { return null; }
  }

  function rewriteUrl(raw) {
    if (typeof raw !== 'string' || raw === '') { return raw; }
    if (raw.indexOf(PREFIX + '/') === 0) { return raw; }
    var lower = raw.toLowerCase();
    if (lower.charAt(0) === '#' ||
        lower.indexOf('mailto:') === 0 ||
        lower.indexOf('tel:') === 0 ||
        lower.indexOf('javascript:') === 0 ||
        lower.indexOf('data:') === 0 ||
        lower.indexOf('blob:') === 0) {
      return raw;
    }
    var wsScheme = '';
    var candidate = raw;
    if (lower.indexOf('ws://') === 0) {
      wsScheme = 'ws';
      candidate = 'http://' + raw.slice(5);
    } else if (lower.indexOf('wss://') === 0) {
      wsScheme = 'wss';
      candidate = 'https://' + raw.slice(6);
    }
    var abs = resolveAgainstTarget(candidate);
    if (!abs || (abs.indexOf('http://') !== 0 && abs.indexOf('https://') !== 0)) {
      return raw;
    }
    var proxied = PREFIX + '/' + encodeURIComponent(abs);
    if (wsScheme) {
      return window.location.origin.replace(/^http/, 'ws') + proxied;
    }
    return proxied;
  }

  // --- network interception ---

  var realFetch = window.fetch;
  window.fetch = function (input, init) {
    var req = input;
    if (typeof input === 'string') {
      req = rewriteUrl(input);
    } else if (input && typeof input.url === 'string') {
      req = new Request(rewriteUrl(input.url), input);
    }
    var opts = init || {};
    if (!opts.credentials) {
      opts = Object.assign({}, opts, { credentials: 'include' });
    }
    return realFetch.call(this, req, opts);
  };

  var realOpen = XMLHttpRequest.prototype.open;
  XMLHttpRequest.prototype.open = function (method, url) {
    var args = Array.prototype.slice.call(arguments);
    args[1] = rewriteUrl(url);
    return realOpen.apply(this, args);
  };

  if (navigator.sendBeacon) {
    var realBeacon = navigator.sendBeacon.bind(navigator);
    navigator.sendBeacon = function (url, data) {
      return realBeacon(rewriteUrl(url), data);
    };
  }

  if (window.EventSource) {
    var RealEventSource = window.EventSource;
    window.EventSource = function (url, conf) {
      return conf === undefined
        ? new RealEventSource(rewriteUrl(url))
        : new RealEventSource(rewriteUrl(url), conf);
    };
    window.EventSource.prototype = RealEventSource.prototype;
  }

  if (window.WebSocket) {
    var RealWebSocket = window.WebSocket;
    window.WebSocket = function (url, protocols) {
      return protocols === undefined
        ? new RealWebSocket(rewriteUrl(url))
        : new RealWebSocket(rewriteUrl(url), protocols);
    };
    window.WebSocket.prototype = RealWebSocket.prototype;
    window.WebSocket.CONNECTING = RealWebSocket.CONNECTING;
    window.WebSocket.OPEN = RealWebSocket.OPEN;
    window.WebSocket.CLOSING = RealWebSocket.CLOSING;
    window.WebSocket.CLOSED = RealWebSocket.CLOSED;
  }

  // --- host protection ---

  if (navigator.serviceWorker) {
    navigator.serviceWorker.register = function () {
      return Promise.reject(new Error('service workers are disabled inside the embedded view'));
    };
  }

  var mediaDenied = function () {
    return Promise.reject(new Error('microphone and camera access is disabled inside the embedded view'));
  };
  if (navigator.mediaDevices && navigator.mediaDevices.getUserMedia) {
    navigator.mediaDevices.getUserMedia = mediaDenied;
  }
  navigator.getUserMedia = undefined;
  navigator.webkitGetUserMedia = undefined;
  navigator.mozGetUserMedia = undefined;

  var RealAudioContext = window.AudioContext || window.webkitAudioContext;
  if (RealAudioContext) {
    var MAX_GAIN = 0.1;
    var QuietAudioContext = function () {
      var ctx = new RealAudioContext();
      var realCreateGain = ctx.createGain.bind(ctx);
      ctx.createGain = function () {
        var gain = realCreateGain();
        try {
          if (gain.gain.value > MAX_GAIN) { gain.gain.value = MAX_GAIN; }
          var realSetValue = gain.gain.setValueAtTime.bind(gain.gain);
          gain.gain.setValueAtTime = function (value, when) {
            return realSetValue(Math.min(value, MAX_GAIN), when);
          };
        } catch (e) {}
        return gain;
      };
      return ctx;
    };
    window.AudioContext = QuietAudioContext;
    if (window.webkitAudioContext) { window.webkitAudioContext = QuietAudioContext; }
  }

  // --- live DOM rewriting ---

  var TAGS = ['A', 'LINK', 'IMG', 'SCRIPT', 'IFRAME', 'SOURCE', 'VIDEO', 'AUDIO', 'FORM'];
  var URL_ATTRS = ['href', 'src', 'action', 'poster', 'data'];
  var CSS_URL = /url\(\s*(['"]?)([^'")]+)\1\s*\)/g;

  function rewriteElement(el) {
    if (!el || !el.tagName || !el.getAttribute) { return; }
    if (TAGS.indexOf(el.tagName) !== -1) {
      URL_ATTRS.forEach(function (name) {
        var value = el.getAttribute(name);
        if (!value) { return; }
        var rewritten = rewriteUrl(value);
        if (rewritten !== value) { el.setAttribute(name, rewritten); }
      });
      var srcset = el.getAttribute('srcset');
      if (srcset) {
        var out = srcset.split(',').map(function (candidate) {
          var parts = candidate.trim().split(/\s+/);
          if (!parts[0]) { return candidate.trim(); }
          parts[0] = rewriteUrl(parts[0]);
          return parts.join(' ');
        }).join(', ');
        if (out !== srcset) { el.setAttribute('srcset', out); }
      }
    }
    var style = el.getAttribute('style');
    if (style && style.indexOf('url(') !== -1) {
      var restyled = style.replace(CSS_URL, function (match, quote, url) {
        var rewritten = rewriteUrl(url);
        return rewritten === url ? match : 'url(' + quote + rewritten + quote + ')';
      });
      if (restyled !== style) { el.setAttribute('style', restyled); }
    }
  }

  function rewriteTree(root) {
    rewriteElement(root);
    if (root.querySelectorAll) {
      root.querySelectorAll(TAGS.join(',')).forEach(rewriteElement);
    }
  }

  var observer = new MutationObserver(function (mutations) {
    mutations.forEach(function (mutation) {
      if (mutation.type === 'attributes') {
        rewriteElement(mutation.target);
        return;
      }
      mutation.addedNodes.forEach(function (node) {
        if (node.nodeType === 1) { rewriteTree(node); }
      });
    });
  });

  function observe() {
    observer.observe(document.documentElement, {
      subtree: true,
      childList: true,
      attributes: true,
      attributeFilter: ['href', 'src', 'srcset', 'action', 'poster', 'data', 'style']
    });
  }

  // --- parent notification bridge ---

  function notify(kind, data) {
    try {
      window.parent.postMessage({
        type: EVENT_PREFIX + '_' + kind,
        data: data || {},
        timestamp: Date.now(),
        url: window.location.href
      }, '*');
    } catch (e) {}
  }

  var lastHref = window.location.href;
  setInterval(function () {
    if (window.location.href !== lastHref) {
      lastHref = window.location.href;
      notify('NAVIGATION', { title: document.title });
    }
  }, 500);

  window.addEventListener('error', function (e) {
    notify('ERROR', { message: e.message || 'script error' });
  });
  window.addEventListener('unhandledrejection', function (e) {
    notify('ERROR', { message: e.reason ? String(e.reason) : 'unhandled rejection' });
  });

  // --- remote auto-scroll control ---

  var scroll = { active: false, speed: 1, direction: 1, frame: null };

  function scrollStep() {
    if (!scroll.active) { return; }
    window.scrollBy(0, scroll.speed * scroll.direction);
    scroll.frame = window.requestAnimationFrame(scrollStep);
  }

  window.addEventListener('message', function (e) {
    var msg = e.data || {};
    switch (msg.type) {
      case 'AUTO_SCROLL_START':
        if (typeof msg.speed === 'number') { scroll.speed = msg.speed; }
        if (msg.direction === 'up') { scroll.direction = -1; }
        if (msg.direction === 'down') { scroll.direction = 1; }
        if (!scroll.active) {
          scroll.active = true;
          scroll.frame = window.requestAnimationFrame(scrollStep);
        }
        break;
      case 'AUTO_SCROLL_STOP':
        scroll.active = false;
        if (scroll.frame) { window.cancelAnimationFrame(scroll.frame); }
        notify('SCROLL_STOPPED', {});
        break;
      case 'AUTO_SCROLL_SPEED_CHANGE':
        if (typeof msg.speed === 'number') { scroll.speed = msg.speed; }
        break;
      case 'AUTO_SCROLL_DIRECTION_CHANGE':
        scroll.direction = msg.direction === 'up' ? -1 : 1;
        break;
    }
  });

  // --- boot ---

  function start() {
    if (document.documentElement) {
      rewriteTree(document.documentElement);
      observe();
    }
    notify('PAGE_READY', { title: document.title });
  }

  if (document.readyState === 'loading') {
    document.addEventListener('DOMContentLoaded', start);
  } else {
    start();
  }
})();
`
