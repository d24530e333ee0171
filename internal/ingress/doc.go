// Package ingress receives Slack Events API callbacks and turns shared video
// files into tasks.
//
// Every request is authenticated against the signing secret before its body is
// parsed. A file_shared event is resolved through files.info, its accompanying
// text is parsed for meeting metadata, and one upload_pending task is created
// before the transfer trigger is dispatched. Platform redeliveries and repeated
// events for the same file never create a second task.
package ingress
