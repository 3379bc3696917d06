from app.api import router

print("hi")
=== END FILE ===

Some chatter between files is ignored.
