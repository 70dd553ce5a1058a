package domain

// KeyPrefix namespaces every key this service writes to a shared key-value store.
const KeyPrefix = "faqbot:"
