// Package slack wraps the handful of Slack Web API calls the pipeline needs:
// files.info for resolving shared files, authenticated downloads of the
// private file URL, chat.postMessage for operator notifications, and
// verification of signed Events API requests.
package slack
