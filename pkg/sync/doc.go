/*
The sync package holds the pieces of the syncbox sync algorithm that the
client and the server share.

Files aren't tracked in memory. A file's record (relative path, size and
modification time) is always read back from the directory it lives in, and
two copies of a file are compared purely by modification time.

Reconciliation works through advertisements. A peer that has a file sends
CHECK_FILE with its modification time. The receiver compares that time with
its own copy (a missing file counts as time 0) and replies NEED_FILE only if
its copy is older. The advertiser answers NEED_FILE with SEND_FILE. A
CHECK_FILE never causes a push from the receiver, even if the receiver's
copy is newer: newer copies propagate when their owner advertises them.

Pushes (SEND_FILE and DELETE_FILE) are sent without being asked for when a
file changes, so peers that are online converge without a round trip.
Delivery is best effort. A peer that misses a push catches up at its next
login, when every file is advertised again.
*/
package sync
