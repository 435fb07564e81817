// Package task implements the background work system: durable task
// records, queue transports (memory, Redis, RabbitMQ), and a worker
// pool that dispatches tasks to registered handlers by kind. Document
// merging, invoice email delivery, search indexing, and address usage
// tracking all run through here.
package task
