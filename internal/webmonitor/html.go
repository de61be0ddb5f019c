package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Seat Occupancy Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <link rel="stylesheet" href="/assets/monitor.css">
    <style>
        body { font-family: sans-serif; background: #16181d; color: #eee; margin: 0; }
        .header { display: flex; justify-content: space-between; align-items: center; padding: 12px 20px; background: #20232a; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(140px, 1fr)); gap: 12px; padding: 20px; }
        .seat { border-radius: 8px; padding: 16px; text-align: center; background: #2c2f36; }
        .seat .id { font-size: 22px; font-weight: bold; }
        .seat .raw { font-size: 11px; opacity: 0.7; }
        .OCCUPIED { background: #a33; }
        .ON-HOLD { background: #c80; }
        .EMPTY { background: #2a7; }
        button { margin-left: 8px; }
        .panel { padding: 0 20px 20px; }
        .panel img { max-width: 100%; border: 1px solid #333; }
    </style>
</head>
<body>
    <div class="header">
        <div class="title">Seat Occupancy Monitor</div>
        <div>
            <span id="status-badge">Waiting for data...</span>
            <button type="button" id="btn-start">Start</button>
            <button type="button" id="btn-stop">Stop</button>
        </div>
    </div>

    <div class="grid" id="seat-grid"></div>

    <div class="panel">
        <p id="frame-info"></p>
        <img id="overlay" alt="Seat zone overlay">
    </div>

    <script>
        const grid = document.getElementById('seat-grid');
        const badge = document.getElementById('status-badge');
        const info = document.getElementById('frame-info');
        const overlay = document.getElementById('overlay');
        const cells = {};

        fetch('/api/seats').then(r => r.json()).then(data => {
            for (const seat of data.seats) {
                const el = document.createElement('div');
                el.className = 'seat';
                el.innerHTML = '<div class="id"></div><div class="status">-</div><div class="raw"></div>';
                el.querySelector('.id').textContent = seat.label;
                grid.appendChild(el);
                cells[seat.id] = el;
            }
        });

        function render(result) {
            for (const seat of result.seats) {
                const el = cells[seat.seat_id];
                if (!el) continue;
                el.className = 'seat ' + seat.status;
                el.querySelector('.status').textContent = seat.status;
                el.querySelector('.raw').textContent = seat.raw_status !== seat.status ? 'raw: ' + seat.raw_status : '';
            }
            info.textContent = 'Frame ' + result.frame_number + ' | occupied ' + result.occupied + '/' + result.seats.length;
            overlay.src = '/api/overlay.png?t=' + Date.now();
        }

        const source = new EventSource('/api/status/stream');
        source.onmessage = ev => {
            badge.textContent = 'Live';
            render(JSON.parse(ev.data));
        };
        source.onerror = () => { badge.textContent = 'Disconnected'; };

        document.getElementById('btn-start').onclick = () =>
            fetch('/api/detection/start', {method: 'POST'}).then(r => r.json()).then(d => { badge.textContent = d.status; });
        document.getElementById('btn-stop').onclick = () =>
            fetch('/api/detection/stop', {method: 'POST'}).then(r => r.json()).then(d => { badge.textContent = d.status || d.error; });
    </script>
</body>
</html>
`
