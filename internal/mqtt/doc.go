// Package mqtt talks to the broker the stack runs, for two narrow jobs:
// verifying that stored credentials actually authenticate, and asking a
// running Zigbee2MQTT to open or close the joining window without a
// restart. Both are one-shot connect, act, disconnect operations; nothing
// here maintains a long-lived session.
package mqtt
