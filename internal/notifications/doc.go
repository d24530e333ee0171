// Package notifications reports task outcomes to the operator.
//
// Service.Publish renders one message per payload in one of three shapes:
// success, failure, or a catch-all for statuses it does not recognize. The
// message fans out to every configured sink (Slack chat.postMessage and an
// optional ntfy topic). Delivery problems are logged and returned for
// inspection but are never meant to block the caller; when nothing is
// configured the service only logs.
package notifications
